package models

import "time"

// MemoryEntry is a single entry in the semantic memory store.
type MemoryEntry struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	Content   string         `json:"content"`
	Category  string         `json:"category"` // defaults to "core"
	Timestamp time.Time      `json:"timestamp"`
	Embedding []float32      `json:"embedding,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// MemoryMatch is a scored MemoryEntry returned from recall.
type MemoryMatch struct {
	Entry MemoryEntry `json:"entry"`
	Score float64     `json:"score"`
}

const DefaultMemoryCategory = "core"
