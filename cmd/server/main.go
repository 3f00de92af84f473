package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/openai"
	"ragchat/internal/embedding/tfidf"
	"ragchat/internal/index"
	"ragchat/internal/indexstore"
	"ragchat/internal/indexstore/file"
	"ragchat/internal/indexstore/sqlite"
	llmopenai "ragchat/internal/llm/openai"
	"ragchat/internal/match"
	"ragchat/internal/responder"
	"ragchat/internal/retriever"
	"ragchat/internal/server"
	"ragchat/internal/service"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	// Assemble components
	emb, err := buildEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder init failed: %v", err)
	}

	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		logger.Fatalf("bad index config: %v", err)
	}
	store, err := buildStore(cfg, metric)
	if err != nil {
		logger.Fatalf("index store init failed: %v", err)
	}

	retr := retriever.New(emb, nil)
	pipe := service.NewPipeline(cfg.Documents.Dir, chunker.NewParagraphChunker(cfg.Chunker.MaxChunkLen), emb, store, metric, retr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipe.EnsureIndex(ctx); err != nil {
		logger.Fatalf("index init failed: %v", err)
	}
	logger.Printf("index ready: %d chunks", retr.Index().Len())

	chat, err := llmopenai.NewClient(llmopenai.Config{
		BaseURL:   cfg.Chat.BaseURL,
		APIKeyEnv: cfg.Chat.APIKeyEnv,
		Model:     cfg.Chat.Model,
		Timeout:   time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Fatalf("chat model init failed: %v", err)
	}

	resp := responder.New(retr, chat, responder.Options{
		TopK:          cfg.Retrieval.TopK,
		Threshold:     cfg.Retrieval.Threshold,
		ContextWindow: cfg.Retrieval.ContextWindow,
	})
	matcher := match.NewManager(logger)

	srv := server.New(logger, retr, resp, pipe, matcher, server.Options{
		TopK:          cfg.Retrieval.TopK,
		Threshold:     cfg.Retrieval.Threshold,
		ContextWindow: cfg.Retrieval.ContextWindow,
	})
	httpSrv := server.NewHTTPServer(cfg.Server.Addr, srv.Handler())

	go func() {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return nil, errors.New("unknown embedder: " + cfg.Embedder.Type)
	}
}

func buildStore(cfg *config.AppConfig, metric index.Metric) (indexstore.Store, error) {
	switch cfg.Index.Store {
	case "file", "":
		return file.NewStore(cfg.Index.Path, metric), nil
	case "sqlite":
		return sqlite.NewStore(cfg.Index.Path, metric), nil
	default:
		return nil, errors.New("unknown index store: " + cfg.Index.Store)
	}
}
