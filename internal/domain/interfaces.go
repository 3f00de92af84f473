package domain

import "context"

// Document represents a single source file loaded into the system.
type Document struct {
	Source  string
	Content string
}

// Chunk is a bounded span of source text used for indexing.
// Chunks are immutable once created; duplicate text across sources is legal.
type Chunk struct {
	Text   string
	Source string
}

// Result is a retrieved chunk together with its distance to the query
// vector and the derived similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float64
	Distance   float64
}

// Answer is the outcome of one response-generation pass. NeedsHuman signals
// that the conversation should be handed off to a live operator; the
// transport layer acts on the flag, not on the answer text.
type Answer struct {
	Text       string
	NeedsHuman bool
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ChatModel generates a completion for a system instruction and user prompt.
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
