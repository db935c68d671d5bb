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

	"github.com/joho/godotenv"

	"imaging-rag/internal/chunker"
	"imaging-rag/internal/config"
	"imaging-rag/internal/domain"
	emblocal "imaging-rag/internal/embedding/local"
	embopenai "imaging-rag/internal/embedding/openai"
	"imaging-rag/internal/pipeline"
	"imaging-rag/internal/vectorstore/chromem"
	"imaging-rag/internal/vectorstore/jsonfile"
	"imaging-rag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: imaging-rag-ingest [--config=config.yaml] file1.jsonl [doc2.md doc3.pdf ...]")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	p, err := assemble(cfg)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total := 0
	for _, path := range inputs {
		added, err := p.IngestFile(ctx, path)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		log.Printf("%s: added %d chunks", path, added)
		total += added
	}
	log.Printf("done: %d chunks across %d files", total, len(inputs))
}

// assemble builds an ingest-only pipeline: no chat model is needed.
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
		nil,
	), nil
}
