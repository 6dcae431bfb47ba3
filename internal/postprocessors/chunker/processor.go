// Package chunker provides a token-bounded text chunking processor.
//
// Tokens are whitespace-separated words. Each chunk holds at most MaxTokens
// tokens and shares Overlap tokens with its predecessor.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DefaultMaxTokens is the default number of tokens per chunk.
const DefaultMaxTokens = domain.DefaultMaxTokens

// DefaultOverlap is the default number of tokens shared by adjacent chunks.
const DefaultOverlap = domain.DefaultOverlap

// Processor splits document content into overlapping token windows.
// It implements the PostProcessor interface.
type Processor struct {
	maxTokens int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxTokens sets the chunk size in tokens.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.maxTokens {
		p.overlap = p.maxTokens / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	tokens := strings.Fields(doc.Content)
	if len(tokens) == 0 {
		// Empty content produces no chunks
		return nil, nil
	}

	step := p.maxTokens - p.overlap
	chunks := make([]domain.Chunk, 0, len(tokens)/step+1)

	for start := 0; start < len(tokens); start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.maxTokens, len(tokens))
		chunks = append(chunks, domain.Chunk{
			Index:      len(chunks),
			Text:       strings.Join(tokens[start:end], " "),
			TokenCount: end - start,
		})

		// The final window already reaches the end; another would be pure overlap.
		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}
