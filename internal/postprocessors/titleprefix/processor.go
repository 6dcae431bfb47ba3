// Package titleprefix prepends the document title to every chunk so that
// chunk embeddings carry the document's topic.
package titleprefix

import (
	"context"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DefaultSeparator sits between the title and the chunk text.
const DefaultSeparator = ": "

// Processor prefixes chunk text with the document title.
// It must run after a processor that creates chunks.
type Processor struct {
	separator string
}

// New creates a title prefix processor. An empty separator uses DefaultSeparator.
func New(separator string) *Processor {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Processor{separator: separator}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "title_prefix"
}

// Process rewrites each chunk. Documents without a title pass through unchanged.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return chunks, nil
	}

	titleTokens := len(strings.Fields(title))
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Text = title + p.separator + c.Text
		c.TokenCount += titleTokens
		out[i] = c
	}
	return out, nil
}
