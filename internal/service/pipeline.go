package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/index"
	"ragchat/internal/indexstore"
	"ragchat/internal/loader"
	"ragchat/internal/retriever"
)

// Pipeline owns the build side of the retrieval stack: loading documents,
// chunking, embedding, persisting the index, and swapping the result into
// the retriever. The index itself is immutable; every rebuild constructs a
// fresh one and replaces the old wholesale.
type Pipeline struct {
	docsDir   string
	chunker   *chunker.ParagraphChunker
	embedder  domain.Embedder
	store     indexstore.Store
	metric    index.Metric
	retriever *retriever.Retriever
	log       *log.Logger
}

// NewPipeline assembles the build pipeline.
func NewPipeline(docsDir string, ch *chunker.ParagraphChunker, embedder domain.Embedder, store indexstore.Store, metric index.Metric, retr *retriever.Retriever, logger *log.Logger) *Pipeline {
	return &Pipeline{
		docsDir:   docsDir,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		metric:    metric,
		retriever: retr,
		log:       logger,
	}
}

// EnsureIndex loads the persisted index if one exists, rebuilding from the
// documents directory otherwise. A missing blob is the expected first-run
// state, not an error.
func (p *Pipeline) EnsureIndex(ctx context.Context) error {
	ix, err := p.store.Load()
	if err != nil {
		if errors.Is(err, indexstore.ErrNotFound) {
			p.log.Printf("no persisted index; rebuilding from %s", p.docsDir)
			_, err = p.Rebuild(ctx)
			return err
		}
		return fmt.Errorf("load index: %w", err)
	}
	// Corpus-prepared embedders (TF-IDF) must see the same corpus at query
	// time that built the index; preparation is deterministic, so replaying
	// it over the loaded chunks reproduces the build-time vocabulary.
	if ix.Len() > 0 {
		if err := p.embedder.Prepare(chunkTexts(ix.Chunks())); err != nil {
			return fmt.Errorf("prepare embedder: %w", err)
		}
	}
	p.retriever.SetIndex(ix)
	p.log.Printf("loaded index with %d chunks", ix.Len())
	return nil
}

// Rebuild loads the documents directory, chunks and embeds everything,
// persists the new index, and swaps it into the retriever. Returns the
// number of indexed chunks.
func (p *Pipeline) Rebuild(ctx context.Context) (int, error) {
	docs, err := loader.LoadDir(p.docsDir, p.log)
	if err != nil {
		return 0, err
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		cs, err := p.chunker.Chunk(doc)
		if err != nil {
			return 0, fmt.Errorf("chunk %s: %w", doc.Source, err)
		}
		p.log.Printf("loaded %d chunks from %s", len(cs), doc.Source)
		chunks = append(chunks, cs...)
	}

	if len(chunks) > 0 {
		if err := p.embedder.Prepare(chunkTexts(chunks)); err != nil {
			return 0, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	ix, err := index.Build(ctx, chunks, p.embedder, p.metric)
	if err != nil {
		return 0, err
	}
	if err := p.store.Save(ix); err != nil {
		return 0, fmt.Errorf("persist index: %w", err)
	}
	p.retriever.SetIndex(ix)
	p.log.Printf("index rebuilt with %d chunks", ix.Len())
	return ix.Len(), nil
}

func chunkTexts(chunks []domain.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
