package chunker

import (
	"regexp"
	"strings"

	"ragchat/internal/domain"
)

// DefaultMaxChunkLen bounds chunk size when no explicit limit is given.
const DefaultMaxChunkLen = 800

var paragraphSplitter = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunker splits text on blank-line boundaries and packs consecutive
// paragraphs into chunks of bounded length.
type ParagraphChunker struct {
	maxChunkLen int
}

// NewParagraphChunker creates a chunker with the given maximum chunk length.
func NewParagraphChunker(maxChunkLen int) *ParagraphChunker {
	if maxChunkLen <= 0 {
		maxChunkLen = DefaultMaxChunkLen
	}
	return &ParagraphChunker{maxChunkLen: maxChunkLen}
}

// Chunk splits a document into paragraph-aligned chunks tagged with its source.
// Paragraphs accumulate into a buffer until adding the next one would reach the
// length limit; the buffer is then emitted and a new one starts with that
// paragraph. The final non-empty buffer is always emitted. A single paragraph
// longer than the limit is emitted whole rather than split mid-paragraph.
func (c *ParagraphChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	paragraphs := paragraphSplitter.Split(doc.Content, -1)

	var chunks []domain.Chunk
	var current strings.Builder

	emit := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, domain.Chunk{Text: text, Source: doc.Source})
		}
		current.Reset()
	}

	for _, para := range paragraphs {
		if current.Len()+len(para) >= c.maxChunkLen {
			emit()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	emit()

	return chunks, nil
}
