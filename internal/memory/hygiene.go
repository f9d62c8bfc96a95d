package memory

import "github.com/kestrel-agent/kestrel/pkg/models"

// HygieneReport summarizes one hygiene pass.
type HygieneReport struct {
	DeduplicatedCount int
	AgedOutCount      int
	EvictedCount      int
}

// RunHygiene deduplicates by (category, key) keeping the newest entry,
// removes non-core entries older than MaxAge, and if still over
// MaxEntries removes the oldest non-core entries until at capacity.
// Every hygiene run invalidates the embedding cache, since stale query
// vectors may now reference entries that no longer exist.
func (s *Store) RunHygiene() HygieneReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report HygieneReport
	nowT := s.now()

	// Deduplicate by (category, key), keeping the newest.
	newest := make(map[string]string) // "category\x00key" -> id
	for _, id := range s.order {
		e := s.entries[id]
		dedupKey := e.Category + "\x00" + e.Key
		if existingID, ok := newest[dedupKey]; ok {
			if e.Timestamp.After(s.entries[existingID].Timestamp) {
				s.remove(existingID)
				report.DeduplicatedCount++
				newest[dedupKey] = id
			} else {
				s.remove(id)
				report.DeduplicatedCount++
			}
			continue
		}
		newest[dedupKey] = id
	}

	// Age out non-core entries.
	if s.cfg.MaxAge > 0 {
		for _, id := range append([]string{}, s.order...) {
			e, ok := s.entries[id]
			if !ok || e.Category == models.DefaultMemoryCategory {
				continue
			}
			if nowT.Sub(e.Timestamp) > s.cfg.MaxAge {
				s.remove(id)
				report.AgedOutCount++
			}
		}
	}

	// Evict oldest non-core entries over capacity.
	if s.cfg.MaxEntries > 0 {
		for len(s.order) > s.cfg.MaxEntries {
			evicted := false
			for _, id := range s.order {
				if s.entries[id].Category != models.DefaultMemoryCategory {
					s.remove(id)
					report.EvictedCount++
					evicted = true
					break
				}
			}
			if !evicted {
				break // only core entries remain; do not evict them
			}
		}
	}

	s.cache.clear()
	return report
}

// Forget removes a single entry by id, invalidating the embedding
// cache since a cached query vector may have scored against it. It
// reports whether an entry with that id existed.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	s.remove(id)
	s.cache.clear()
	return true
}

// remove deletes an entry by id. Callers must hold s.mu.
func (s *Store) remove(id string) {
	delete(s.entries, id)
	delete(s.index, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
