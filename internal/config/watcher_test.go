package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: v1
`)

	var mu sync.Mutex
	var reloaded *Config
	w := NewWatcher(path, func(c *Config) {
		mu.Lock()
		reloaded = c
		mu.Unlock()
	}, nil)
	w.debounce = 10 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("agent:\n  model: v2\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := reloaded
		mu.Unlock()
		if got != nil && got.Agent.Model == "v2" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected a reload with model=v2, last seen: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherSkipsInvalidReload(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: v1
`)

	var mu sync.Mutex
	calls := 0
	w := NewWatcher(path, func(c *Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil)
	w.debounce = 10 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("agent:\n  bogus_field: true\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected onReload to be skipped for an invalid config, got %d calls", calls)
	}
}
