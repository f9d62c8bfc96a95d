// Package memory implements the hybrid BM25 + cosine semantic memory
// store described in spec §4.5: a flat ordered entry list, a parallel
// per-entry token index, and pluggable embedding-backed vector scoring.
// Grounded on the teacher's internal/memory.Manager shape (embedder +
// config + cache), generalized from its external vector-store backends
// to an in-process hybrid engine.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kestrel-agent/kestrel/internal/memory/embeddings"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// highCosineAdmitThreshold is the fixed threshold above which an
// entry with zero BM25 score is still admitted to recall results,
// scored purely on its vector similarity.
const highCosineAdmitThreshold = 0.5

// Config controls recall scoring and hygiene.
type Config struct {
	VectorWeight  float64
	KeywordWeight float64
	MinScore      float64
	MaxAge        time.Duration
	MaxEntries    int
	CacheCapacity int
}

// DefaultConfig returns the teacher-observed defaults: an even hybrid
// split, a permissive min score, a 30 day age ceiling for non-core
// entries, a 10,000 entry cap, and a 256-entry embedding cache.
func DefaultConfig() Config {
	return Config{
		VectorWeight:  0.5,
		KeywordWeight: 0.5,
		MinScore:      0.0,
		MaxAge:        30 * 24 * time.Hour,
		MaxEntries:    10_000,
		CacheCapacity: 256,
	}
}

// Store is the in-process hybrid BM25 + cosine memory engine.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]models.MemoryEntry
	order    []string // insertion order, oldest first
	index    map[string]docIndex
	embedder embeddings.Provider
	cache    *embeddingCache
	cfg      Config
	now      func() time.Time
	nextID   uint64
}

// New creates an empty store. embedder may be nil: Recall then behaves
// identically to RecallSync (keyword-only scoring).
func New(cfg Config, embedder embeddings.Provider, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:  make(map[string]models.MemoryEntry),
		index:    make(map[string]docIndex),
		embedder: embedder,
		cache:    newEmbeddingCache(cfg.CacheCapacity),
		cfg:      cfg,
		now:      now,
	}
}

// Add inserts an entry, minting its ID as mem_<n> from a monotonic
// counter (spec §3: "Identifiers have form mem_<n> with n monotonic").
// Category defaults to "core" if unset. Running hygiene afterward is
// the caller's responsibility (the agent core runs it on a cadence).
func (s *Store) Add(key, content, category string, meta map[string]any) models.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" {
		category = models.DefaultMemoryCategory
	}
	s.nextID++
	entry := models.MemoryEntry{
		ID:        fmt.Sprintf("mem_%d", s.nextID),
		Key:       key,
		Content:   content,
		Category:  category,
		Timestamp: s.now(),
		Meta:      meta,
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	s.index[entry.ID] = newDocIndex(tokenizeWeighted(key, content))
	return entry
}

// SetEmbedding attaches a precomputed embedding vector to an entry.
func (s *Store) SetEmbedding(id string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.Embedding = vec
	s.entries[id] = e
}

// Recall performs the full hybrid scan: an empty query returns every
// (optionally category-filtered) entry at score 1; a non-empty query
// computes BM25 and, when an embedder is configured, cosine similarity
// against a freshly embedded (and LRU-cached) query vector.
func (s *Store) Recall(ctx context.Context, query, category string, topK int) ([]models.MemoryMatch, error) {
	var queryEmbedding []float32
	if s.embedder != nil && strings.TrimSpace(query) != "" {
		normalized := strings.ToLower(strings.TrimSpace(query))
		if cached, ok := s.cache.get(normalized); ok {
			queryEmbedding = cached
		} else {
			vec, err := s.embedder.Embed(ctx, query)
			if err != nil {
				return nil, err
			}
			s.cache.set(normalized, vec)
			queryEmbedding = vec
		}
	}
	return s.recall(query, category, topK, queryEmbedding)
}

// RecallSync is the synchronous, keyword-only recall path: it never
// calls the embedder, equivalent to forcing the vector weight to zero.
func (s *Store) RecallSync(query, category string, topK int) []models.MemoryMatch {
	matches, _ := s.recall(query, category, topK, nil)
	return matches
}

func (s *Store) recall(query, category string, topK int, queryEmbedding []float32) ([]models.MemoryMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		var out []models.MemoryMatch
		for _, id := range s.order {
			e := s.entries[id]
			if category != "" && e.Category != category {
				continue
			}
			out = append(out, models.MemoryMatch{Entry: e, Score: 1})
		}
		return capMatches(out, topK), nil
	}

	queryTokens := tokenize(query)
	candidates := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if category != "" && s.entries[id].Category != category {
			continue
		}
		candidates = append(candidates, id)
	}

	docsForScoring := make(map[string]docIndex, len(candidates))
	for _, id := range candidates {
		docsForScoring[id] = s.index[id]
	}
	scorer := newBM25Scorer(docsForScoring)

	bm25Raw := make(map[string]float64, len(candidates))
	maxBM25 := 0.0
	for _, id := range candidates {
		sc := scorer.score(id, queryTokens)
		bm25Raw[id] = sc
		if sc > maxBM25 {
			maxBM25 = sc
		}
	}

	haveVectors := len(queryEmbedding) > 0
	var out []models.MemoryMatch
	for _, id := range candidates {
		e := s.entries[id]
		bm25norm := 0.0
		if maxBM25 > 0 {
			bm25norm = bm25Raw[id] / maxBM25
		}

		var score float64
		switch {
		case haveVectors:
			cos := cosine(queryEmbedding, e.Embedding)
			if bm25Raw[id] == 0 && cos > highCosineAdmitThreshold {
				score = s.cfg.VectorWeight * cos
			} else if bm25Raw[id] > 0 || cos > 0 {
				score = s.cfg.VectorWeight*cos + s.cfg.KeywordWeight*bm25norm
			} else {
				continue
			}
		default:
			if bm25Raw[id] == 0 {
				continue
			}
			score = bm25norm
		}

		out = append(out, models.MemoryMatch{Entry: e, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	var filtered []models.MemoryMatch
	for _, m := range out {
		if m.Score >= s.cfg.MinScore {
			filtered = append(filtered, m)
		}
	}

	return capMatches(filtered, topK), nil
}

func capMatches(matches []models.MemoryMatch, topK int) []models.MemoryMatch {
	if topK > 0 && len(matches) > topK {
		return matches[:topK]
	}
	return matches
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns every entry in insertion order, for checkpointing.
func (s *Store) Snapshot() []models.MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MemoryEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// Restore replaces the store's entire entry set with entries,
// preserving ids and insertion order, and rebuilds the BM25 token
// index and embedding cache from scratch — used by checkpoint restore.
func (s *Store) Restore(entries []models.MemoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.MemoryEntry, len(entries))
	s.order = make([]string, 0, len(entries))
	s.index = make(map[string]docIndex, len(entries))
	for _, e := range entries {
		s.entries[e.ID] = e
		s.order = append(s.order, e.ID)
		s.index[e.ID] = newDocIndex(tokenizeWeighted(e.Key, e.Content))
	}
	s.cache.clear()
}
