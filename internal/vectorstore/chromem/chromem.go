// Package chromem adapts chromem-go as an alternate vector store backend.
// It keeps its own similarity index, so large collections stay usable
// without touching the flat-file scan.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"imaging-rag/internal/domain"
)

const collectionName = "items"

// Store is a chromem-go backed vector store. Embeddings are computed
// upstream by the pipeline; chromem only indexes them.
type Store struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// New opens (or creates) a persistent chromem database at path. An empty
// path keeps the collection in memory only.
func New(path string) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	coll, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	return &Store{db: db, coll: coll}, nil
}

// Load is a no-op: a persistent chromem DB restores itself on open.
func (s *Store) Load() error { return nil }

// Save is a no-op: chromem persists each document as it is added.
func (s *Store) Save() error { return nil }

// Add indexes the given items with their precomputed embeddings.
func (s *Store) Add(items ...domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Content:   item.Text,
			Embedding: toFloat32(item.Embedding),
			Metadata:  map[string]string{"source": item.Source},
		})
	}
	if err := s.coll.AddDocuments(context.Background(), docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Len returns the number of indexed items.
func (s *Store) Len() int { return s.coll.Count() }

// Search queries the collection with the precomputed query embedding.
// chromem rejects k greater than the document count, so k is clamped.
func (s *Store) Search(queryEmbedding []float64, k int) ([]domain.ScoredItem, error) {
	count := s.coll.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := s.coll.QueryEmbedding(context.Background(), toFloat32(queryEmbedding), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	scored := make([]domain.ScoredItem, 0, len(results))
	for _, r := range results {
		scored = append(scored, domain.ScoredItem{
			Item: domain.Item{
				ID:        r.ID,
				Text:      r.Content,
				Source:    r.Metadata["source"],
				Embedding: toFloat64(r.Embedding),
			},
			Score: float64(r.Similarity),
		})
	}
	return scored, nil
}

// noEmbedding guards against chromem embedding content itself; every
// document and query carries a vector already.
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("chromem store expects precomputed embeddings")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
