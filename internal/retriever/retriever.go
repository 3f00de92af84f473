package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/index"
)

// Retriever embeds queries and searches the current index, filtering results
// by a similarity threshold. It holds the index behind a lock so a rebuild
// can swap in a replacement wholesale while queries are being served.
type Retriever struct {
	mu       sync.RWMutex
	idx      *index.Index
	embedder domain.Embedder
}

// New creates a retriever over the given embedder. The index may be set
// later via SetIndex.
func New(embedder domain.Embedder, idx *index.Index) *Retriever {
	return &Retriever{embedder: embedder, idx: idx}
}

// SetIndex replaces the served index. The previous index is left untouched,
// so in-flight queries that already grabbed it keep working on a consistent
// snapshot.
func (r *Retriever) SetIndex(idx *index.Index) {
	r.mu.Lock()
	r.idx = idx
	r.mu.Unlock()
}

// Index returns the currently served index (possibly nil).
func (r *Retriever) Index() *index.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.idx
}

// Similarity converts a raw distance into a similarity score in (0, 1]:
// 1/(1+distance). Distance zero maps to similarity one.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// Retrieve embeds the query, searches the top-k nearest chunks, and drops
// any result whose similarity falls below threshold. An empty result is a
// valid outcome, not an error; callers decide how to fall back.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]domain.Result, error) {
	idx := r.Index()
	if idx == nil || idx.Len() == 0 {
		return nil, nil
	}
	return r.search(ctx, idx, query, k, threshold)
}

// RetrieveWithContext runs the base retrieval and expands each surviving
// result with up to window neighboring chunks on each side, drawn from the
// same source only. A result whose originating position cannot be located is
// passed through unexpanded.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, k int, threshold float64, window int) ([]domain.Result, error) {
	idx := r.Index()
	if idx == nil || idx.Len() == 0 {
		return nil, nil
	}
	results, err := r.search(ctx, idx, query, k, threshold)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		return results, nil
	}
	chunks := idx.Chunks()
	for i, res := range results {
		pos := findChunk(chunks, res.Chunk)
		if pos < 0 {
			continue
		}
		results[i].Chunk.Text = expand(chunks, pos, window)
	}
	return results, nil
}

func (r *Retriever) search(ctx context.Context, idx *index.Index, query string, k int, threshold float64) ([]domain.Result, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := idx.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	var results []domain.Result
	for _, h := range hits {
		sim := Similarity(h.Distance)
		if sim < threshold {
			continue
		}
		results = append(results, domain.Result{
			Chunk:      h.Chunk,
			Similarity: sim,
			Distance:   h.Distance,
		})
	}
	return results, nil
}

// findChunk locates a chunk's position in the full sequence by exact
// text+source equality. First match wins, consistent with insertion-order
// tie-breaking elsewhere.
func findChunk(chunks []domain.Chunk, target domain.Chunk) int {
	for i, c := range chunks {
		if c.Text == target.Text && c.Source == target.Source {
			return i
		}
	}
	return -1
}

// expand concatenates up to window chunks on each side of pos, stopping at
// any source boundary so context never bleeds across documents.
func expand(chunks []domain.Chunk, pos, window int) string {
	source := chunks[pos].Source
	start := pos
	for start > 0 && pos-start < window && chunks[start-1].Source == source {
		start--
	}
	end := pos
	for end < len(chunks)-1 && end-pos < window && chunks[end+1].Source == source {
		end++
	}
	parts := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		parts = append(parts, chunks[i].Text)
	}
	return strings.Join(parts, "\n\n")
}
