// Command indexer rebuilds the persisted chunk index from the documents
// directory and prints a short digest of the indexed corpus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
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
	"ragchat/internal/retriever"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var digestSentences int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.IntVar(&digestSentences, "digest", 5, "Sentences in the printed corpus digest (0 disables)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

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

	n, err := pipe.Rebuild(context.Background())
	if err != nil {
		logger.Fatalf("rebuild failed: %v", err)
	}
	fmt.Printf("indexed %d chunks from %s into %s\n", n, cfg.Documents.Dir, cfg.Index.Path)

	if digestSentences > 0 && n > 0 {
		texts := make([]string, 0, n)
		for _, c := range retr.Index().Chunks() {
			texts = append(texts, c.Text)
		}
		digest, err := summarizer.NewFrequencySummarizer().Summarize(strings.Join(texts, " "), digestSentences)
		if err != nil {
			logger.Fatalf("digest failed: %v", err)
		}
		fmt.Println("\ncorpus digest:")
		fmt.Println(digest)
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
