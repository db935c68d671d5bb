// Package qdrant is a minimal REST client backend for a remote Qdrant
// collection. It assumes cosine distance and creates the collection lazily
// from the first batch's dimension.
package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imaging-rag/internal/domain"
)

// Store talks to a Qdrant collection over its REST API.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// Config holds connection details for a Qdrant store.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Qdrant-backed store.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Load is a no-op: the collection lives server-side.
func (s *Store) Load() error { return nil }

// Save is a no-op: upserts are written through on Add.
func (s *Store) Save() error { return nil }

// Add upserts items as points. The collection is created on the first call
// using the dimension of the first embedding.
func (s *Store) Add(items ...domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	if s.dimension == 0 {
		dim := len(items[0].Embedding)
		if dim == 0 {
			return errors.New("qdrant: first item has no embedding")
		}
		if err := s.ensureCollection(dim); err != nil {
			return err
		}
		s.dimension = dim
	}
	points := make([]map[string]any, len(items))
	for i, item := range items {
		points[i] = map[string]any{
			"id":     item.ID,
			"vector": item.Embedding,
			"payload": map[string]any{
				"text":   item.Text,
				"source": item.Source,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

// Len returns the server-side point count, or 0 when the collection is
// missing or unreachable.
func (s *Store) Len() int {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	if err := s.postJSON(url, map[string]any{"exact": true}, &resp); err != nil {
		return 0
	}
	return resp.Result.Count
}

// Search runs a cosine search against the collection.
func (s *Store) Search(queryEmbedding []float64, k int) ([]domain.ScoredItem, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       queryEmbedding,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.ScoredItem, 0, len(resp.Result))
	for _, r := range resp.Result {
		item := domain.Item{ID: r.ID}
		if v, ok := r.Payload["text"].(string); ok {
			item.Text = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			item.Source = v
		}
		results = append(results, domain.ScoredItem{Item: item, Score: r.Score})
	}
	return results, nil
}

func (s *Store) ensureCollection(dimension int) error {
	// Qdrant answers 200 if the collection already exists with this schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) putJSON(url string, body any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
