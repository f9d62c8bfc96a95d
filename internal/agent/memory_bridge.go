package agent

import (
	"context"

	"github.com/kestrel-agent/kestrel/internal/memory"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// MemoryStore adds an entry to semantic memory and appends its
// memory_stored event (spec.md §4.6).
func (rt *Runtime) MemoryStore(key, content, category string, meta map[string]any) models.MemoryEntry {
	entry := rt.memory.Add(key, content, category, meta)
	rt.events.Append(models.EventMemoryStored, models.EventData{
		MemoryID:  entry.ID,
		MemoryKey: entry.Key,
	}, models.SourceSystem)
	return entry
}

// MemoryRecall is the asynchronous hybrid BM25+cosine recall path.
func (rt *Runtime) MemoryRecall(ctx context.Context, query, category string, topK int) ([]models.MemoryMatch, error) {
	return rt.memory.Recall(ctx, query, category, topK)
}

// MemoryRecallSync is the synchronous, keyword-only recall variant.
func (rt *Runtime) MemoryRecallSync(query, category string, topK int) []models.MemoryMatch {
	return rt.memory.RecallSync(query, category, topK)
}

// MemoryForget removes a single memory entry and, if it existed,
// appends a memory_forgotten event.
func (rt *Runtime) MemoryForget(id string) bool {
	if !rt.memory.Forget(id) {
		return false
	}
	rt.events.Append(models.EventMemoryForgotten, models.EventData{MemoryID: id}, models.SourceSystem)
	return true
}

// MemoryHygiene runs the dedup/age-out/evict sweep over semantic
// memory.
func (rt *Runtime) MemoryHygiene() memory.HygieneReport {
	return rt.memory.RunHygiene()
}
