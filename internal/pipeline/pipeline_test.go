package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imaging-rag/internal/chunker"
	"imaging-rag/internal/domain"
	"imaging-rag/internal/vectorstore/jsonfile"
)

// keywordEmbedder maps texts onto a tiny keyword space so ranking is easy
// to reason about in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		vec := []float64{0, 0, 0.1}
		if strings.Contains(lower, "lesion") {
			vec[0] = 1
		}
		if strings.Contains(lower, "abnormality") {
			vec[1] = 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedTexts(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("embedding endpoint down")
}

type fakeChat struct {
	answer   string
	messages []domain.Message
}

func (f *fakeChat) Complete(_ context.Context, messages []domain.Message) (string, error) {
	f.messages = messages
	return f.answer, nil
}

func (f *fakeChat) Stream(_ context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	f.messages = messages
	for _, part := range strings.SplitAfter(f.answer, " ") {
		if onDelta != nil {
			onDelta(part)
		}
	}
	return f.answer, nil
}

func (f *fakeChat) Model() string { return "fake-model" }

func newTestPipeline(t *testing.T, dataDir string, chat domain.ChatModel) *Pipeline {
	t.Helper()
	store := jsonfile.New(filepath.Join(t.TempDir(), "index.json"))
	if err := store.Load(); err != nil {
		t.Fatalf("store load failed: %v", err)
	}
	cfg := Config{DataDir: dataDir, SampleFile: "sample_imaging.jsonl", TopK: 4, ChunkSize: 800, Overlap: 120}
	return New(cfg, chunker.NewWindow(800, 120), keywordEmbedder{}, store, chat)
}

var sampleRecords = []domain.Record{
	{"text": "CT scan shows no abnormality."},
	{"text": "MRI reveals a small lesion."},
}

func TestIngestRecords_AndRetrieve(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)

	added, err := p.IngestRecords(context.Background(), sampleRecords, "unit-test")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 chunks added, got %d", added)
	}

	results, err := p.RetrieveContext(context.Background(), "lesion", 1)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Item.Text, "lesion") {
		t.Fatalf("top result should contain 'lesion', got %q", results[0].Item.Text)
	}
	if results[0].Item.Source != "unit-test" {
		t.Fatalf("expected source 'unit-test', got %q", results[0].Item.Source)
	}
	if results[0].Item.ID == "" {
		t.Fatalf("ingested items must get generated ids")
	}
}

func TestIngestRecords_SkipsInvalidRecords(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)

	records := []domain.Record{
		{"text": "   "},
		{"text": 42},
		{"title": "no text field"},
		{"description": "MRI reveals a small lesion."},
	}
	added, err := p.IngestRecords(context.Background(), records, "mixed")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 chunk from the description record, got %d", added)
	}
}

func TestIngestRecords_NothingValid(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)
	added, err := p.IngestRecords(context.Background(), []domain.Record{{"text": ""}}, "empty")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 chunks, got %d", added)
	}
}

func TestIngestRecords_EmbedderFailurePropagates(t *testing.T) {
	store := jsonfile.New(filepath.Join(t.TempDir(), "index.json"))
	_ = store.Load()
	p := New(Config{DataDir: t.TempDir()}, chunker.NewWindow(800, 120), failingEmbedder{}, store, nil)

	if _, err := p.IngestRecords(context.Background(), sampleRecords, "src"); err == nil {
		t.Fatalf("expected embedder failure to propagate")
	}
	if store.Len() != 0 {
		t.Fatalf("failed ingest must not add items")
	}
}

func TestIngestFile_MissingFile(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)
	_, err := p.IngestFile(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestIngestFile_JSONLSkipsMalformed(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, "notes.jsonl")
	content := `{"text":"CT scan shows no abnormality."}
garbage line
{"text":"MRI reveals a small lesion."}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, dataDir, nil)
	added, err := p.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 chunks from 2 good lines, got %d", added)
	}
}

func TestEnsureIndexBuilt_WithSampleDataset(t *testing.T) {
	dataDir := t.TempDir()
	sample := `{"text":"CT scan shows no abnormality."}
{"text":"MRI reveals a small lesion."}
`
	if err := os.WriteFile(filepath.Join(dataDir, "sample_imaging.jsonl"), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, dataDir, nil)
	if err := p.EnsureIndexBuilt(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if p.store.Len() == 0 {
		t.Fatalf("expected store to be populated from sample dataset")
	}

	before := p.store.Len()
	// second call must be a no-op
	if err := p.EnsureIndexBuilt(context.Background()); err != nil {
		t.Fatalf("repeat bootstrap failed: %v", err)
	}
	if p.store.Len() != before {
		t.Fatalf("bootstrap must not re-ingest, had %d now %d", before, p.store.Len())
	}
}

func TestEnsureIndexBuilt_NoSampleDataset(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)
	if err := p.EnsureIndexBuilt(context.Background()); err != nil {
		t.Fatalf("missing sample dataset must not be an error: %v", err)
	}
	if p.store.Len() != 0 {
		t.Fatalf("store should stay empty without a sample dataset")
	}
}

func TestBuildPrompt_Format(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)
	contexts := []domain.ScoredItem{
		{Item: domain.Item{Text: "MRI reveals a small lesion.", Source: "notes.jsonl"}},
		{Item: domain.Item{Text: "CT scan shows no abnormality.", Source: "notes.jsonl"}},
	}

	messages := p.BuildPrompt("what did the MRI show?", contexts, nil)
	if len(messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(messages))
	}
	if messages[0].Role != domain.RoleSystem {
		t.Fatalf("first message must be the system instruction")
	}
	user := messages[1].Content
	if !strings.Contains(user, "[Source: notes.jsonl]\nMRI reveals a small lesion.") {
		t.Fatalf("context block malformed:\n%s", user)
	}
	if !strings.Contains(user, "\n\n[Source: notes.jsonl]\nCT scan") {
		t.Fatalf("context entries must be joined by a blank line:\n%s", user)
	}
	if !strings.Contains(user, "Question: what did the MRI show?\n") {
		t.Fatalf("question line missing:\n%s", user)
	}
}

func TestBuildPrompt_HistoryTrimmedAndFiltered(t *testing.T) {
	p := newTestPipeline(t, t.TempDir(), nil)

	var history []domain.Message
	for i := 0; i < 5; i++ {
		history = append(history,
			domain.Message{Role: domain.RoleUser, Content: "q"},
			domain.Message{Role: domain.RoleAssistant, Content: "a"},
		)
	}
	history = append(history, domain.Message{Role: "tool", Content: "ignored"})

	messages := p.BuildPrompt("next question", nil, history)
	// system + at most 6 history turns (one filtered out) + user question
	if len(messages) != 1+5+1 {
		t.Fatalf("expected 7 messages, got %d", len(messages))
	}
	for _, m := range messages[1 : len(messages)-1] {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			t.Fatalf("history must be filtered to user/assistant, got %q", m.Role)
		}
	}
}

func TestChat_FullRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	sample := `{"text":"CT scan shows no abnormality."}
{"text":"MRI reveals a small lesion."}
`
	if err := os.WriteFile(filepath.Join(dataDir, "sample_imaging.jsonl"), []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	chat := &fakeChat{answer: "The MRI shows a small lesion."}
	p := newTestPipeline(t, dataDir, chat)

	result, err := p.Chat(context.Background(), "lesion", 1, nil)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if result.Answer != chat.answer {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Model != "fake-model" {
		t.Fatalf("unexpected model: %q", result.Model)
	}
	if len(result.Contexts) != 1 || !strings.Contains(result.Contexts[0].Text, "lesion") {
		t.Fatalf("expected the lesion context, got %+v", result.Contexts)
	}
	if len(chat.messages) == 0 || chat.messages[0].Role != domain.RoleSystem {
		t.Fatalf("chat model should receive the assembled prompt")
	}
}

func TestChatStream_DeliversDeltas(t *testing.T) {
	chat := &fakeChat{answer: "token by token"}
	p := newTestPipeline(t, t.TempDir(), chat)
	_, _ = p.IngestRecords(context.Background(), sampleRecords, "src")

	var streamed strings.Builder
	result, err := p.ChatStream(context.Background(), "lesion", 1, nil, func(delta string) {
		streamed.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if streamed.String() != result.Answer {
		t.Fatalf("streamed %q but answer is %q", streamed.String(), result.Answer)
	}
}
