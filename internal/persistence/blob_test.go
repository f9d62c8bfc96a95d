package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalBlobStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}

	if err := store.WriteFile("a/b/c.txt", []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !store.Exists("a/b/c.txt") {
		t.Fatal("expected file to exist after WriteFile")
	}
	data, err := store.ReadFile("a/b/c.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
}

func TestLocalBlobStoreWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalBlobStore(dir)
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	if err := store.WriteFile("f.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "f.txt.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected the .tmp file to be renamed away, stat err = %v", err)
	}
}

func TestLocalBlobStoreOverwritePreservesAtomicity(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	if err := store.WriteFile("f.txt", []byte("v1")); err != nil {
		t.Fatalf("WriteFile v1: %v", err)
	}
	if err := store.WriteFile("f.txt", []byte("v2")); err != nil {
		t.Fatalf("WriteFile v2: %v", err)
	}
	data, err := store.ReadFile("f.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("got %q, want %q", data, "v2")
	}
}

func TestLocalBlobStoreListDir(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	store.WriteFile("convA/meta.json", []byte("{}"))
	store.WriteFile("convA/events.jsonl", []byte(""))

	entries, err := store.ListDir("convA")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 2 || entries[0] != "events.jsonl" || entries[1] != "meta.json" {
		t.Fatalf("unexpected directory listing: %v", entries)
	}

	entries, err = store.ListDir("does-not-exist")
	if err != nil {
		t.Fatalf("ListDir of a missing directory should not error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for a missing directory, got %v", entries)
	}
}

func TestLocalBlobStoreDeleteFile(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBlobStore: %v", err)
	}
	store.WriteFile("f.txt", []byte("x"))
	if err := store.DeleteFile("f.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if store.Exists("f.txt") {
		t.Fatal("expected file to be gone")
	}
	// deleting an already-absent file is not an error
	if err := store.DeleteFile("f.txt"); err != nil {
		t.Fatalf("DeleteFile of an absent file should not error: %v", err)
	}
}
