package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// ResponseCache is the optional response-cache collaborator (spec.md
// §6): a stable hash over messages+model maps to a previously observed
// ProviderResponse.
type ResponseCache interface {
	CacheKey(messages []Message, model string) string
	Get(key string) (*models.ProviderResponse, bool)
	Set(key string, response *models.ProviderResponse, model string)
}

// MemoryResponseCache is a process-local ResponseCache. It is not
// wired in by default (the spec treats the cache as an optional
// collaborator); a host opts in by passing one to New.
type MemoryResponseCache struct {
	mu      sync.RWMutex
	entries map[string]*models.ProviderResponse
}

// NewMemoryResponseCache returns an empty in-memory response cache.
func NewMemoryResponseCache() *MemoryResponseCache {
	return &MemoryResponseCache{entries: make(map[string]*models.ProviderResponse)}
}

// CacheKey hashes the concatenation of each message's role+content pair
// plus the model identifier, per spec.md §6.
func (c *MemoryResponseCache) CacheKey(messages []Message, model string) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteByte('\x00')
		b.WriteString(m.Content)
		b.WriteByte('\x1e')
	}
	b.WriteByte('\x00')
	b.WriteString(model)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c *MemoryResponseCache) Get(key string) (*models.ProviderResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *MemoryResponseCache) Set(key string, response *models.ProviderResponse, model string) {
	if response == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = response
}
