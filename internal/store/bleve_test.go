package store

import (
	"context"
	"testing"
)

func newTestKeywordIndex(t *testing.T) *BleveKeywordIndex {
	t.Helper()
	idx, err := NewBleveKeywordIndex("")
	if err != nil {
		t.Fatalf("NewBleveKeywordIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveKeywordIndex_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestKeywordIndex(t)

	chunks := []*ChunkRecord{
		{ID: "c1", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "c2", Content: "completely unrelated content about gardening"},
	}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("index: %v", err)
	}

	results, err := idx.Search(ctx, "fox", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected c1 to match 'fox', got %+v", results)
	}
}

func TestBleveKeywordIndex_SearchEmptyQueryReturnsEmpty(t *testing.T) {
	idx := newTestKeywordIndex(t)
	results, err := idx.Search(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(results))
	}
}

func TestBleveKeywordIndex_SearchRegexp(t *testing.T) {
	ctx := context.Background()
	idx := newTestKeywordIndex(t)

	chunks := []*ChunkRecord{
		{ID: "c1", Content: "func handleRequest() error"},
		{ID: "c2", Content: "some prose with no code"},
	}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("index: %v", err)
	}

	results, err := idx.SearchRegexp(ctx, "handle.*", 10)
	if err != nil {
		t.Fatalf("regex search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected c1 to match regex, got %+v", results)
	}
}

func TestBleveKeywordIndex_DeleteRemovesFromResults(t *testing.T) {
	ctx := context.Background()
	idx := newTestKeywordIndex(t)

	chunks := []*ChunkRecord{{ID: "c1", Content: "searchable content here"}}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.Delete(ctx, []string{"c1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	results, err := idx.Search(ctx, "searchable", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected deleted chunk to be gone, got %+v", results)
	}
}

func TestBleveKeywordIndex_StatsReportsChunkCount(t *testing.T) {
	ctx := context.Background()
	idx := newTestKeywordIndex(t)

	if err := idx.Index(ctx, []*ChunkRecord{{ID: "c1", Content: "a"}, {ID: "c2", Content: "b"}}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if got := idx.Stats().ChunkCount; got != 2 {
		t.Errorf("expected chunk count 2, got %d", got)
	}
}
