package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

// planeEmbedder maps each known text to a fixed 2D point.
type planeEmbedder struct {
	points map[string][]float64
}

func (e *planeEmbedder) Name() string { return "plane" }

func (e *planeEmbedder) Prepare(corpus []string) error { return nil }

func (e *planeEmbedder) Dimension() int { return 2 }

func (e *planeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if v, ok := e.points[text]; ok {
		return v, nil
	}
	return []float64{0, 0}, nil
}

func (e *planeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{Text: "near", Source: "a.txt"},
		{Text: "mid", Source: "a.txt"},
		{Text: "far", Source: "b.txt"},
	}
}

func testEmbedder() *planeEmbedder {
	return &planeEmbedder{points: map[string][]float64{
		"near": {1, 0},
		"mid":  {3, 0},
		"far":  {10, 0},
	}}
}

func TestSearch_OrdersByAscendingDistance(t *testing.T) {
	ix, err := Build(context.Background(), testChunks(), testEmbedder(), MetricL2)
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())

	hits, err := ix.Search([]float64{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "near", hits[0].Chunk.Text)
	assert.Equal(t, "mid", hits[1].Chunk.Text)
	assert.Equal(t, "far", hits[2].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 3.0, hits[1].Distance, 1e-9)
}

func TestSearch_TiesBreakByInsertionOrder(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "first", Source: "a"},
		{Text: "second", Source: "a"},
	}
	e := &planeEmbedder{points: map[string][]float64{
		"first":  {0, 5},
		"second": {5, 0},
	}}
	ix, err := Build(context.Background(), chunks, e, MetricL2)
	require.NoError(t, err)

	hits, err := ix.Search([]float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].Chunk.Text)
	assert.Equal(t, "second", hits[1].Chunk.Text)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	ix, err := Build(context.Background(), testChunks(), testEmbedder(), MetricL2)
	require.NoError(t, err)

	hits, err := ix.Search([]float64{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearch_EmptyIndex(t *testing.T) {
	ix, err := FromParts(nil, nil, MetricL2)
	require.NoError(t, err)
	hits, err := ix.Search([]float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_CosineMetric(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "same direction", Source: "a"},
		{Text: "orthogonal", Source: "a"},
	}
	e := &planeEmbedder{points: map[string][]float64{
		"same direction": {2, 0},
		"orthogonal":     {0, 2},
	}}
	ix, err := Build(context.Background(), chunks, e, MetricCosine)
	require.NoError(t, err)

	hits, err := ix.Search([]float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "same direction", hits[0].Chunk.Text)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, hits[1].Distance, 1e-9)
}

func TestFromParts_LengthMismatch(t *testing.T) {
	_, err := FromParts([][]float64{{1}}, nil, MetricL2)
	assert.Error(t, err)
}

func TestFromParts_RejectsRaggedVectors(t *testing.T) {
	chunks := []domain.Chunk{{Text: "a"}, {Text: "b"}}
	_, err := FromParts([][]float64{{1, 0}, {1, 0, 0}}, chunks, MetricL2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_RejectsMismatchedQueryDimension(t *testing.T) {
	ix, err := Build(context.Background(), testChunks(), testEmbedder(), MetricL2)
	require.NoError(t, err)
	require.Equal(t, 2, ix.Dimension())

	_, err = ix.Search([]float64{1, 2, 3}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	m, err = ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)

	_, err = ParseMetric("manhattan")
	assert.Error(t, err)
}
