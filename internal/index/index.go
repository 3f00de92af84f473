package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"ragchat/internal/domain"
)

// Metric selects the distance function used by Search.
type Metric string

const (
	MetricL2     Metric = "l2"
	MetricCosine Metric = "cosine"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricL2, MetricCosine:
		return Metric(s), nil
	case "":
		return MetricL2, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// Index holds embedding vectors and their chunks as parallel slices;
// position i is the join key between the two. An Index is read-only after
// construction: a corpus change means building a new Index and swapping it
// in wholesale, never mutating an existing one.
type Index struct {
	vectors [][]float64
	chunks  []domain.Chunk
	metric  Metric
	dim     int
}

// ErrDimensionMismatch reports a query vector whose dimensionality differs
// from the indexed vectors, typically a persisted index reloaded against a
// different embedding model.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one nearest-neighbor search result.
type Hit struct {
	Chunk    domain.Chunk
	Distance float64
}

// Build embeds the chunks in order and assembles an index over them.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, metric Metric) (*Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	return FromParts(vectors, chunks, metric)
}

// FromParts assembles an index from already-computed vectors, preserving the
// given order. Used by the persistence backends on load.
func FromParts(vectors [][]float64, chunks []domain.Chunk, metric Metric) (*Index, error) {
	if len(vectors) != len(chunks) {
		return nil, errors.New("vectors and chunks length mismatch")
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return &Index{vectors: vectors, chunks: chunks, metric: metric, dim: dim}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Dimension returns the dimensionality of the indexed vectors, 0 when the
// index is empty.
func (ix *Index) Dimension() int { return ix.dim }

// Metric returns the distance metric this index searches with.
func (ix *Index) Metric() Metric { return ix.metric }

// Chunks returns the indexed chunks in insertion order. Callers must treat
// the slice as read-only.
func (ix *Index) Chunks() []domain.Chunk { return ix.chunks }

// Vectors returns the embedding vectors in insertion order. Callers must
// treat the slice as read-only.
func (ix *Index) Vectors() [][]float64 { return ix.vectors }

// Search returns the k nearest chunks to the query vector, ascending by
// distance. Ties are broken by insertion order, so results are fully
// deterministic. An empty index returns no hits; a query whose dimension
// differs from the indexed vectors returns ErrDimensionMismatch.
func (ix *Index) Search(query []float64, k int) ([]Hit, error) {
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	distances := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		distances[i] = ix.distance(query, v)
	}
	order := make([]int, len(distances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] < distances[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		j := order[i]
		hits[i] = Hit{Chunk: ix.chunks[j], Distance: distances[j]}
	}
	return hits, nil
}

func (ix *Index) distance(a, b []float64) float64 {
	switch ix.metric {
	case MetricCosine:
		return cosineDistance(a, b)
	default:
		return euclidean(a, b)
	}
}

// Both distance functions assume equal-length inputs; Search and FromParts
// validate dimensions before they run.
func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
