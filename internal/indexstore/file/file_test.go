package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/index"
	"ragchat/internal/indexstore"
)

func TestStore_RoundTrip(t *testing.T) {
	vectors := [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}
	chunks := []domain.Chunk{
		{Text: "alpha", Source: "a.txt"},
		{Text: "beta", Source: "a.txt"},
		{Text: "gamma", Source: "b.txt"},
	}
	ix, err := index.FromParts(vectors, chunks, index.MetricL2)
	require.NoError(t, err)

	store := NewStore(filepath.Join(t.TempDir(), "nested", "index.gob"), index.MetricL2)
	require.NoError(t, store.Save(ix))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, ix.Len(), loaded.Len())
	assert.Equal(t, chunks, loaded.Chunks())
	assert.Equal(t, vectors, loaded.Vectors())
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "index.gob"), index.MetricL2)
	_, err := store.Load()
	assert.ErrorIs(t, err, indexstore.ErrNotFound)
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob")
	store := NewStore(path, index.MetricL2)

	first, err := index.FromParts([][]float64{{1}}, []domain.Chunk{{Text: "old", Source: "s"}}, index.MetricL2)
	require.NoError(t, err)
	require.NoError(t, store.Save(first))

	second, err := index.FromParts(
		[][]float64{{2}, {3}},
		[]domain.Chunk{{Text: "new1", Source: "s"}, {Text: "new2", Source: "s"}},
		index.MetricL2,
	)
	require.NoError(t, err)
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "new1", loaded.Chunks()[0].Text)
}
