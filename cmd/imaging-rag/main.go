package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"imaging-rag/internal/chunker"
	"imaging-rag/internal/config"
	"imaging-rag/internal/domain"
	emblocal "imaging-rag/internal/embedding/local"
	embopenai "imaging-rag/internal/embedding/openai"
	llmopenai "imaging-rag/internal/llm/openai"
	"imaging-rag/internal/pipeline"
	"imaging-rag/internal/session"
	"imaging-rag/internal/tui"
	"imaging-rag/internal/vectorstore/chromem"
	"imaging-rag/internal/vectorstore/jsonfile"
	"imaging-rag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	topK := flag.Int("k", 0, "Number of contexts to retrieve (default from config)")
	ask := flag.String("ask", "", "Ask a single question, stream the answer to stdout and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	k := *topK
	if k <= 0 {
		k = cfg.Retrieval.TopK
	}

	p, err := assemble(cfg)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.EnsureIndexBuilt(ctx); err != nil {
		log.Fatalf("failed to build index: %v", err)
	}

	if *ask != "" {
		result, err := p.ChatStream(ctx, *ask, k, nil, func(delta string) {
			fmt.Print(delta)
		})
		if err != nil {
			log.Fatalf("chat failed: %v", err)
		}
		fmt.Println()
		for _, c := range result.Contexts {
			fmt.Printf("[Source: %s]\n", c.Source)
		}
		return
	}

	sessions := session.New(time.Duration(cfg.Session.TTLMins)*time.Minute, cfg.Session.MaxTurns)
	m := tui.New(p, sessions, k)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

// assemble builds the pipeline from config: embedder, store, chat model and
// the default record chunker.
func assemble(cfg *config.AppConfig) (*pipeline.Pipeline, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "openai", "":
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "local":
		dim := 0
		if cfg.Embedder.Local != nil {
			dim = cfg.Embedder.Local.Dimension
		}
		emb = emblocal.NewEmbedder(dim)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var store domain.VectorStore
	switch cfg.Store.Type {
	case "jsonfile", "":
		store = jsonfile.New(cfg.Store.Path)
	case "chromem":
		path := ""
		if cfg.Store.Chromem != nil {
			path = cfg.Store.Chromem.Path
		}
		s, err := chromem.New(path)
		if err != nil {
			return nil, fmt.Errorf("chromem store init failed: %w", err)
		}
		store = s
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		store = qdrant.New(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Store.Type)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("load vector store: %w", err)
	}

	chat, err := llmopenai.NewClient(llmopenai.Config{
		BaseURL:     cfg.Chat.BaseURL,
		APIKeyEnv:   cfg.Chat.APIKeyEnv,
		Model:       cfg.Chat.Model,
		Temperature: *cfg.Chat.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat client init failed: %w", err)
	}

	return pipeline.New(
		pipeline.Config{
			DataDir:    cfg.Retrieval.DataDir,
			SampleFile: cfg.Retrieval.SampleFile,
			TopK:       cfg.Retrieval.TopK,
			ChunkSize:  cfg.Chunker.ChunkSize,
			Overlap:    *cfg.Chunker.Overlap,
		},
		chunker.NewWindow(cfg.Chunker.ChunkSize, *cfg.Chunker.Overlap),
		emb,
		store,
		chat,
	), nil
}
