package memory

import (
	"testing"
	"time"
)

func fixedStore(cfg Config) *Store {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(cfg, nil, func() time.Time { return now })
}

func TestAdd_IDsAreMonotonicMemPrefixed(t *testing.T) {
	s := fixedStore(DefaultConfig())
	a := s.Add("k1", "first", "core", nil)
	b := s.Add("k2", "second", "core", nil)

	if a.ID != "mem_1" {
		t.Fatalf("expected first entry id mem_1, got %q", a.ID)
	}
	if b.ID != "mem_2" {
		t.Fatalf("expected second entry id mem_2, got %q", b.ID)
	}
}

func TestRecallSync_EmptyQueryReturnsAllFilteredByCategory(t *testing.T) {
	s := fixedStore(DefaultConfig())
	s.Add("k1", "first entry", "core", nil)
	s.Add("k2", "second entry", "scratch", nil)

	all := s.RecallSync("", "", 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 entries with no category filter, got %d", len(all))
	}
	for _, m := range all {
		if m.Score != 1 {
			t.Fatalf("expected score 1 for empty query, got %v", m.Score)
		}
	}

	core := s.RecallSync("", "core", 0)
	if len(core) != 1 || core[0].Entry.Key != "k1" {
		t.Fatalf("expected only the core entry, got %+v", core)
	}
}

func TestRecallSync_KeywordMatchRanksHigherTermOverlapFirst(t *testing.T) {
	s := fixedStore(DefaultConfig())
	s.Add("deploy notes", "the deployment pipeline uses canary rollouts and canary checks", "core", nil)
	s.Add("unrelated", "the weather today is sunny and warm", "core", nil)

	matches := s.RecallSync("canary rollout", "", 0)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Entry.Key != "deploy notes" {
		t.Fatalf("expected the canary-relevant entry to rank first, got %q", matches[0].Entry.Key)
	}
}

func TestRecallSync_NoMatchingTermsReturnsEmpty(t *testing.T) {
	s := fixedStore(DefaultConfig())
	s.Add("k1", "apples and oranges", "core", nil)

	matches := s.RecallSync("spacecraft", "", 0)
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestRunHygiene_DeduplicatesByCategoryAndKeyKeepingNewest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(DefaultConfig(), nil, func() time.Time { return now })

	s.Add("pref", "old value", "core", nil)
	now = now.Add(time.Hour)
	newest := s.Add("pref", "new value", "core", nil)

	report := s.RunHygiene()
	if report.DeduplicatedCount != 1 {
		t.Fatalf("expected 1 deduplicated entry, got %d", report.DeduplicatedCount)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", s.Len())
	}

	remaining := s.RecallSync("", "", 0)
	if len(remaining) != 1 || remaining[0].Entry.ID != newest.ID {
		t.Fatalf("expected the newest entry to survive, got %+v", remaining)
	}
}

func TestRunHygiene_AgesOutNonCoreEntriesButKeepsCore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(Config{MaxAge: time.Hour, MaxEntries: 100, CacheCapacity: 16}, nil, func() time.Time { return now })

	s.Add("old-core", "x", "core", nil)
	s.Add("old-scratch", "x", "scratch", nil)

	now = now.Add(2 * time.Hour)
	report := s.RunHygiene()

	if report.AgedOutCount != 1 {
		t.Fatalf("expected 1 aged-out entry, got %d", report.AgedOutCount)
	}
	if s.Len() != 1 {
		t.Fatalf("expected the core entry to survive, got %d entries", s.Len())
	}
}

func TestRunHygiene_EvictsOldestNonCoreOverCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(Config{MaxAge: 0, MaxEntries: 2, CacheCapacity: 16}, nil, func() time.Time { return now })

	s.Add("a", "x", "scratch", nil)
	s.Add("b", "x", "scratch", nil)
	s.Add("c", "x", "scratch", nil)

	report := s.RunHygiene()
	if report.EvictedCount != 1 {
		t.Fatalf("expected 1 evicted entry, got %d", report.EvictedCount)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries remaining at capacity, got %d", s.Len())
	}
}

func TestRunHygiene_NeverEvictsCoreEvenOverCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(Config{MaxAge: 0, MaxEntries: 1, CacheCapacity: 16}, nil, func() time.Time { return now })

	s.Add("a", "x", "core", nil)
	s.Add("b", "x", "core", nil)

	report := s.RunHygiene()
	if report.EvictedCount != 0 {
		t.Fatalf("expected core entries never evicted, got %d evictions", report.EvictedCount)
	}
	if s.Len() != 2 {
		t.Fatalf("expected both core entries to survive, got %d", s.Len())
	}
}
