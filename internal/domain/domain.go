package domain

import (
	"context"
	"strings"
)

// Item is one entry of the vector index: a chunk of source text together
// with its embedding. The JSON tags define the persisted file layout.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float64 `json:"embedding"`
}

// ScoredItem is an item paired with its similarity to a query.
type ScoredItem struct {
	Item  Item
	Score float64
}

// Record is a raw ingestion record, typically one decoded JSONL line.
type Record map[string]any

// Text returns the record's retrievable text: the "text" field, falling
// back to "description". Non-string or blank values yield "".
func (r Record) Text() string {
	for _, key := range []string{"text", "description"} {
		if v, ok := r[key].(string); ok {
			if t := strings.TrimSpace(v); t != "" {
				return t
			}
		}
	}
	return ""
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextRef is a retrieved context as returned to callers: text plus its
// originating source, without the embedding.
type ContextRef struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// ChatResult is the outcome of one RAG round-trip.
type ChatResult struct {
	Answer   string       `json:"answer"`
	Contexts []ContextRef `json:"contexts"`
	Model    string       `json:"model"`
}

// Chunker splits raw text into retrievable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder converts batches of texts into embedding vectors, one per input,
// in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists items and supports similarity search. Implementations
// must be safe for concurrent use; the interface exists so an indexed
// nearest-neighbor backend can replace the linear scan without touching
// callers.
type VectorStore interface {
	Load() error
	Save() error
	Add(items ...Item) error
	Search(queryEmbedding []float64, k int) ([]ScoredItem, error)
	Len() int
}

// ChatModel produces completions for a list of messages. Stream delivers
// the answer incrementally through onDelta and returns the full text.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message, onDelta func(string)) (string, error)
	Model() string
}
