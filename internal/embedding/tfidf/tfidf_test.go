package tfidf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder_PrepareAndEmbed(t *testing.T) {
	ctx := context.Background()
	corpus := []string{
		"shipping takes three business days",
		"refunds issued within seven days",
		"contact support about shipping damage",
	}

	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	require.Greater(t, e.Dimension(), 0)

	vec, err := e.Embed(ctx, "how long does shipping take")
	require.NoError(t, err)
	require.Len(t, vec, e.Dimension())

	// L2 normalized
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestEmbedder_DeterministicAcrossPrepares(t *testing.T) {
	ctx := context.Background()
	corpus := []string{"alpha beta gamma", "beta gamma delta"}

	a := NewEmbedder()
	b := NewEmbedder()
	require.NoError(t, a.Prepare(corpus))
	require.NoError(t, b.Prepare(corpus))

	va, err := a.Embed(ctx, "beta delta")
	require.NoError(t, err)
	vb, err := b.Embed(ctx, "beta delta")
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestEmbedder_EmbedBeforePrepare(t *testing.T) {
	e := NewEmbedder()
	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}

func TestEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"one fish", "two fish", "red fish"}))

	vecs, err := e.EmbedBatch(ctx, []string{"one fish", "red fish"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	one, err := e.Embed(ctx, "one fish")
	require.NoError(t, err)
	assert.Equal(t, one, vecs[0])
}

func TestEmbedder_UnknownTokensYieldZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))

	vec, err := e.Embed(context.Background(), "zzz qqq")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}
