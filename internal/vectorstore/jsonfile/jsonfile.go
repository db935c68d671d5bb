// Package jsonfile implements the flat-file vector store: a single JSON
// array of items searched with a brute-force cosine scan. Acceptable at
// demo scale; larger indexes belong behind another domain.VectorStore
// implementation.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"imaging-rag/internal/domain"
)

// Store holds items in memory and persists them wholesale to one file.
// All operations take the store lock, so concurrent ingests cannot lose
// each other's additions.
type Store struct {
	mu    sync.RWMutex
	path  string
	items []domain.Item
}

// New creates a store backed by the given file path. Call Load before use.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the backing file. A missing file leaves the store empty and
// returns nil; a present but unreadable or malformed file is an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.items = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	var items []domain.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse index %s: %w", s.path, err)
	}
	s.items = items
	return nil
}

// Save writes the full collection, creating the parent directory if needed.
// The write goes to a temp file first and is renamed into place, so a crash
// mid-write never corrupts an existing index.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Add appends items in order. Ids are not deduplicated.
func (s *Store) Add(items ...domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	return nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Search scores every item against the query by cosine similarity and
// returns the top k, highest first. Ties keep insertion order. Items with
// no embedding score 0. If k exceeds the item count, all items are returned.
func (s *Store) Search(queryEmbedding []float64, k int) ([]domain.ScoredItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]domain.ScoredItem, 0, len(s.items))
	for _, item := range s.items {
		score := 0.0
		if len(item.Embedding) > 0 {
			score = cosine(queryEmbedding, item.Embedding)
		}
		scored = append(scored, domain.ScoredItem{Item: item, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	if k < 0 {
		k = 0
	}
	return scored[:k], nil
}

// cosine computes similarity over the shared prefix of a and b. The small
// epsilon keeps zero vectors from dividing by zero. The persisted format
// carries no dimension, so mismatched lengths truncate rather than error.
func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	const eps = 1e-8
	da := math.Sqrt(na)
	if da == 0 {
		da = eps
	}
	db := math.Sqrt(nb)
	if db == 0 {
		db = eps
	}
	return dot / (da * db)
}
