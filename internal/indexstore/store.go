package indexstore

import (
	"errors"

	"ragchat/internal/index"
)

// ErrNotFound reports that no persisted index exists yet. Callers treat it
// as a signal to rebuild from the documents directory, not as a failure.
var ErrNotFound = errors.New("no persisted index found")

// Store persists a built index and loads it back in insertion order.
type Store interface {
	Save(ix *index.Index) error
	Load() (*index.Index, error)
}
