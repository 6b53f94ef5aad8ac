package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestHNSWStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	if err != nil {
		t.Fatalf("NewHNSWStore: %v", err)
	}
	defer s.Close()

	ids := []string{"a", "b", "c"}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}
	if err := s.Add(ctx, ids, vecs); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" && results[0].ID != "c" {
		t.Errorf("expected closest match to be a or c, got %s", results[0].ID)
	}
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	if err != nil {
		t.Fatalf("NewHNSWStore: %v", err)
	}
	defer s.Close()

	err = s.Add(context.Background(), []string{"a"}, [][]float32{{1, 2}})
	if _, ok := err.(ErrDimensionMismatch); !ok {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHNSWStore_AddReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	s, _ := NewHNSWStore(DefaultVectorStoreConfig(2))
	defer s.Close()

	_ = s.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}
	_ = s.Add(ctx, []string{"a"}, [][]float32{{0, 1}})
	if s.Count() != 1 {
		t.Fatalf("expected count to stay 1 after replace, got %d", s.Count())
	}
}

func TestHNSWStore_DeleteAndContains(t *testing.T) {
	ctx := context.Background()
	s, _ := NewHNSWStore(DefaultVectorStoreConfig(2))
	defer s.Close()

	_ = s.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	if !s.Contains("a") {
		t.Fatal("expected store to contain a")
	}
	if err := s.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Contains("a") {
		t.Error("expected a to be removed")
	}
}

func TestHNSWStore_SaveAndLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s, _ := NewHNSWStore(DefaultVectorStoreConfig(2))
	_ = s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer loaded.Close()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("expected 2 loaded vectors, got %d", loaded.Count())
	}
}
