package file

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ragchat/internal/domain"
	"ragchat/internal/index"
	"ragchat/internal/indexstore"
)

// Store persists the index as a single gob blob holding the
// (vectors, chunks) pair.
type Store struct {
	path   string
	metric index.Metric
}

// NewStore creates a file-backed index store at the given path.
func NewStore(path string, metric index.Metric) *Store {
	return &Store{path: path, metric: metric}
}

type blob struct {
	Vectors [][]float64
	Chunks  []domain.Chunk
}

// Save writes the index to disk, creating parent directories as needed.
// The write goes through a temp file and rename so a crash mid-save never
// leaves a truncated blob behind.
func (s *Store) Save(ix *index.Index) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "index-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(blob{Vectors: ix.Vectors(), Chunks: ix.Chunks()}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the persisted index. A missing file yields indexstore.ErrNotFound.
func (s *Store) Load() (*index.Index, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, indexstore.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	var b blob
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return index.FromParts(b.Vectors, b.Chunks, s.metric)
}
