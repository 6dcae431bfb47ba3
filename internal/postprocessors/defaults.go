package postprocessors

import (
	"github.com/custodia-labs/recall/internal/adapters/driven/config/value"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
	"github.com/custodia-labs/recall/internal/postprocessors/titleprefix"
)

// Built-in processor names as used in chunking.processors.
const (
	NameChunker     = "chunker"
	NameTitlePrefix = "title_prefix"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register(NameChunker, Splitter, buildChunker)
	r.Register(NameTitlePrefix, Transformer, buildTitlePrefix)
}

// NewFromSettings builds the chunking pipeline described by settings.
// An empty processor list means the chunker alone.
func NewFromSettings(settings domain.ChunkingSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	names := settings.Processors
	if len(names) == 0 {
		names = []string{NameChunker}
	}

	return r.BuildPipeline(names, map[string]map[string]any{
		NameChunker: {
			"max_tokens": settings.MaxTokens,
			"overlap":    settings.Overlap,
		},
	})
}

// buildChunker reads max_tokens and overlap. A non-positive max_tokens keeps
// the chunker default; overlap is applied whenever present.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option
	if n, ok := value.Int(cfg["max_tokens"]); ok && n > 0 {
		opts = append(opts, chunker.WithMaxTokens(n))
	}
	if n, ok := value.Int(cfg["overlap"]); ok {
		opts = append(opts, chunker.WithOverlap(n))
	}
	return chunker.New(opts...), nil
}

func buildTitlePrefix(cfg map[string]any) (driven.PostProcessor, error) {
	sep, _ := value.String(cfg["separator"])
	return titleprefix.New(sep), nil
}
