package persistence

import "testing"

func TestMemoryKVNamespacedByWorkspace(t *testing.T) {
	kv := NewMemoryKV()
	kv.Put("ws-1", "theme", "dark")
	kv.Put("ws-2", "theme", "light")

	if v, ok := kv.Get("ws-1", "theme"); !ok || v != "dark" {
		t.Fatalf("ws-1 theme = %q, %v", v, ok)
	}
	if v, ok := kv.Get("ws-2", "theme"); !ok || v != "light" {
		t.Fatalf("ws-2 theme = %q, %v", v, ok)
	}
	if _, ok := kv.Get("ws-3", "theme"); ok {
		t.Fatal("expected no value for an unknown workspace")
	}
}

func TestMemoryKVDelete(t *testing.T) {
	kv := NewMemoryKV()
	kv.Put("ws-1", "k", "v")
	kv.Delete("ws-1", "k")
	if _, ok := kv.Get("ws-1", "k"); ok {
		t.Fatal("expected key to be gone after Delete")
	}
	// deleting an already-absent key is a no-op, not an error
	kv.Delete("ws-1", "k")
}

func TestMemoryKVKeys(t *testing.T) {
	kv := NewMemoryKV()
	kv.Put("ws-1", "a", "1")
	kv.Put("ws-1", "b", "2")

	keys := kv.Keys("ws-1")
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	if len(kv.Keys("ws-missing")) != 0 {
		t.Fatal("expected no keys for an unknown workspace")
	}
}
