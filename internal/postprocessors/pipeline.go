// Package postprocessors turns document content into the chunks that get
// embedded. A Pipeline runs a splitter followed by any number of
// transformers; the Registry builds pipelines from configured names.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs PostProcessors in order, feeding each the previous output.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in the order given.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs doc through every processor. The first one receives nil
// chunks. The result is renumbered from zero so indexes stay dense when a
// transformer drops chunks. Cancellation is checked between processors.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, proc := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := proc.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
		logger.Debug("postprocessor done", "processor", proc.Name(),
			"document_id", doc.ID, "chunks_in", len(chunks), "chunks_out", len(out))
		chunks = out
	}

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks, nil
}

// Add appends a processor.
func (p *Pipeline) Add(proc driven.PostProcessor) {
	p.processors = append(p.processors, proc)
}

func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}
