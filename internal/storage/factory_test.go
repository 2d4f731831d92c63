package storage

import (
	"errors"
	"testing"

	"gaugehmc/internal/params"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore(params.StoreRecord{Kind: "memory"})
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore(params.StoreRecord{Kind: "badger"})
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Fatalf("expected unsupported store error, got %v", err)
	}
}

func TestBackendsIncludeMemory(t *testing.T) {
	backends := Backends()
	if len(backends) == 0 || backends[0] != "memory" {
		t.Fatalf("unexpected backends: %v", backends)
	}
	for _, kind := range backends {
		store, err := NewStore(params.StoreRecord{Kind: kind, Path: t.TempDir() + "/backend.db"})
		if err != nil {
			t.Fatalf("listed backend %q unavailable: %v", kind, err)
		}
		_ = CloseIfSupported(store)
	}
}
