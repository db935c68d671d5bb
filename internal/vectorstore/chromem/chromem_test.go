package chromem

import (
	"testing"

	"imaging-rag/internal/domain"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestStore_AddAndSearch(t *testing.T) {
	s := newMemoryStore(t)
	err := s.Add(
		domain.Item{ID: "ct", Text: "CT scan shows no abnormality.", Source: "a.jsonl", Embedding: []float64{1, 0, 0}},
		domain.Item{ID: "mri", Text: "MRI reveals a small lesion.", Source: "b.jsonl", Embedding: []float64{0, 1, 0}},
	)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", s.Len())
	}

	got, err := s.Search([]float64{0, 0.9, 0.1}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Item.ID != "mri" || got[0].Item.Source != "b.jsonl" {
		t.Fatalf("wrong top result: %+v", got[0].Item)
	}
}

func TestStore_SearchClampsK(t *testing.T) {
	s := newMemoryStore(t)
	if err := s.Add(domain.Item{ID: "only", Text: "one", Embedding: []float64{1, 0}}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	got, err := s.Search([]float64{1, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected clamped single result, got %d", len(got))
	}
}

func TestStore_SearchEmpty(t *testing.T) {
	s := newMemoryStore(t)
	got, err := s.Search([]float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no results on empty store, got %v", got)
	}
}
