package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"ragchat/internal/domain"
	"ragchat/internal/index"
	"ragchat/internal/indexstore"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	position INTEGER PRIMARY KEY,
	source   TEXT NOT NULL,
	text     TEXT NOT NULL,
	vector   BLOB NOT NULL
);
`

// Store persists the index in a sqlite database, one row per chunk with the
// insertion position as primary key so load reconstructs the original order.
type Store struct {
	path   string
	metric index.Metric
}

// NewStore creates a sqlite-backed index store at the given path.
func NewStore(path string, metric index.Metric) *Store {
	return &Store{path: path, metric: metric}
}

// Save replaces the persisted index wholesale inside one transaction.
func (s *Store) Save(ix *index.Index) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO chunks (position, source, text, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	chunks := ix.Chunks()
	vectors := ix.Vectors()
	for i := range chunks {
		vec, err := encodeVector(vectors[i])
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(i, chunks[i].Source, chunks[i].Text, vec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load reads the persisted index ordered by position. A missing database
// file yields indexstore.ErrNotFound.
func (s *Store) Load() (*index.Index, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, indexstore.ErrNotFound
	}
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query("SELECT source, text, vector FROM chunks ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var vectors [][]float64
	for rows.Next() {
		var ch domain.Chunk
		var raw []byte
		if err := rows.Scan(&ch.Source, &ch.Text, &raw); err != nil {
			return nil, err
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return index.FromParts(vectors, chunks, s.metric)
}

func encodeVector(v []float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(raw []byte) ([]float64, error) {
	var v []float64
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
