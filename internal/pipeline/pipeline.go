// Package pipeline orchestrates the RAG round-trip: chunk ingestion,
// embedding, retrieval, prompt assembly and the chat completion call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"imaging-rag/internal/chunker"
	"imaging-rag/internal/docload"
	"imaging-rag/internal/domain"
)

const systemPrompt = "You are a helpful assistant answering questions about medical imaging " +
	"and radiology. Use only the provided context. If unsure, say you don't know."

// maxHistoryTurns bounds how much prior conversation is replayed into the
// prompt.
const maxHistoryTurns = 6

// Config holds the pipeline's tunables.
type Config struct {
	DataDir    string // directory holding ingestable files
	SampleFile string // JSONL bootstrap dataset inside DataDir
	TopK       int    // default retrieval depth
	ChunkSize  int    // window size for per-file chunker selection
	Overlap    int    // window overlap for per-file chunker selection
}

// Pipeline wires the chunker, embedder, vector store and chat model
// together. The store must be Loaded before the pipeline is constructed.
type Pipeline struct {
	cfg      Config
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	chat     domain.ChatModel
}

// New creates a pipeline from its collaborators.
func New(cfg Config, chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, chat domain.ChatModel) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.SampleFile == "" {
		cfg.SampleFile = "sample_imaging.jsonl"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	return &Pipeline{cfg: cfg, chunker: chunker, embedder: embedder, store: store, chat: chat}
}

// EmbedTexts embeds the given texts, preserving input order.
func (p *Pipeline) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	return p.embedder.EmbedTexts(ctx, texts)
}

// IngestRecords chunks every record's text, embeds all chunks in one pass,
// appends them to the store under fresh ids and persists it. Records
// without usable text are skipped. Returns the number of chunks added.
func (p *Pipeline) IngestRecords(ctx context.Context, records []domain.Record, source string) (int, error) {
	var chunks []string
	for _, rec := range records {
		text := rec.Text()
		if text == "" {
			continue
		}
		chunks = append(chunks, p.chunker.Split(text)...)
	}
	return p.ingestChunks(ctx, chunks, source)
}

// ingestChunks embeds the chunks in one pass, appends them to the store
// under fresh ids and persists it.
func (p *Pipeline) ingestChunks(ctx context.Context, chunks []string, source string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	items := make([]domain.Item, len(chunks))
	for i, chunk := range chunks {
		items[i] = domain.Item{
			ID:        uuid.NewString(),
			Text:      chunk,
			Source:    source,
			Embedding: embeddings[i],
		}
	}
	if err := p.store.Add(items...); err != nil {
		return 0, fmt.Errorf("add items: %w", err)
	}
	if err := p.store.Save(); err != nil {
		return 0, fmt.Errorf("save index: %w", err)
	}
	return len(items), nil
}

// IngestFile ingests one file by extension: .jsonl as records, anything
// else as a single document split by a chunker suited to the file type.
// The source name is the file's base name.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", path, err)
	}
	source := filepath.Base(path)
	if strings.ToLower(filepath.Ext(path)) == ".jsonl" {
		records, skipped, err := docload.ReadJSONL(path)
		if err != nil {
			return 0, err
		}
		for _, s := range skipped {
			log.Printf("skipping malformed record %s:%d: %v", source, s.Line, s.Err)
		}
		return p.IngestRecords(ctx, records, source)
	}
	text, err := docload.ExtractText(path)
	if err != nil {
		return 0, err
	}
	chunks := chunker.ForFile(path, p.cfg.ChunkSize, p.cfg.Overlap).Split(text)
	return p.ingestChunks(ctx, chunks, source)
}

// EnsureIndexBuilt bootstraps an empty store from the sample dataset when
// it is present. A missing sample file is not an error.
func (p *Pipeline) EnsureIndexBuilt(ctx context.Context) error {
	if p.store.Len() > 0 {
		return nil
	}
	samplePath := filepath.Join(p.cfg.DataDir, p.cfg.SampleFile)
	if _, err := os.Stat(samplePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	added, err := p.IngestFile(ctx, samplePath)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}
	log.Printf("bootstrapped index with %d chunks from %s", added, p.cfg.SampleFile)
	return nil
}

// RetrieveContext embeds the query and returns its k nearest stored items.
func (p *Pipeline) RetrieveContext(ctx context.Context, query string, k int) ([]domain.ScoredItem, error) {
	if k <= 0 {
		k = p.cfg.TopK
	}
	embeddings, err := p.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, errors.New("embedder returned no vector for query")
	}
	return p.store.Search(embeddings[0], k)
}

// BuildPrompt assembles the message list: system instruction, up to the
// last six user/assistant history turns, then the user question grounded
// in the retrieved context block.
func (p *Pipeline) BuildPrompt(query string, contexts []domain.ScoredItem, history []domain.Message) []domain.Message {
	blocks := make([]string, 0, len(contexts))
	for _, c := range contexts {
		blocks = append(blocks, fmt.Sprintf("[Source: %s]\n%s", c.Item.Source, c.Item.Text))
	}
	contextBlock := strings.Join(blocks, "\n\n")

	messages := []domain.Message{{Role: domain.RoleSystem, Content: systemPrompt}}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, m := range history {
		if m.Role == domain.RoleUser || m.Role == domain.RoleAssistant {
			messages = append(messages, m)
		}
	}
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n", contextBlock, query)
	return append(messages, domain.Message{Role: domain.RoleUser, Content: user})
}

// PrepareMessages runs the retrieval half of a chat: ensure the index,
// retrieve context and build the prompt.
func (p *Pipeline) PrepareMessages(ctx context.Context, query string, k int, history []domain.Message) ([]domain.Message, []domain.ScoredItem, error) {
	if err := p.EnsureIndexBuilt(ctx); err != nil {
		return nil, nil, err
	}
	contexts, err := p.RetrieveContext(ctx, query, k)
	if err != nil {
		return nil, nil, err
	}
	return p.BuildPrompt(query, contexts, history), contexts, nil
}

// Chat runs the full round-trip and returns the answer together with the
// contexts it was grounded in.
func (p *Pipeline) Chat(ctx context.Context, query string, k int, history []domain.Message) (*domain.ChatResult, error) {
	messages, contexts, err := p.PrepareMessages(ctx, query, k, history)
	if err != nil {
		return nil, err
	}
	answer, err := p.chat.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	return p.result(answer, contexts), nil
}

// ChatStream is Chat with incremental delivery: each answer delta is passed
// to onDelta as it arrives.
func (p *Pipeline) ChatStream(ctx context.Context, query string, k int, history []domain.Message, onDelta func(string)) (*domain.ChatResult, error) {
	messages, contexts, err := p.PrepareMessages(ctx, query, k, history)
	if err != nil {
		return nil, err
	}
	answer, err := p.chat.Stream(ctx, messages, onDelta)
	if err != nil {
		return nil, err
	}
	return p.result(answer, contexts), nil
}

func (p *Pipeline) result(answer string, contexts []domain.ScoredItem) *domain.ChatResult {
	refs := make([]domain.ContextRef, 0, len(contexts))
	for _, c := range contexts {
		refs = append(refs, domain.ContextRef{Text: c.Item.Text, Source: c.Item.Source})
	}
	return &domain.ChatResult{Answer: answer, Contexts: refs, Model: p.chat.Model()}
}
