package postprocessors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from processor-specific settings.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Role says where a processor may sit in a pipeline.
type Role int

const (
	// Splitter creates chunks from document content and must come first.
	Splitter Role = iota
	// Transformer rewrites the chunks it receives.
	Transformer
)

func (r Role) String() string {
	if r == Splitter {
		return "splitter"
	}
	return "transformer"
}

type entry struct {
	role  Role
	build BuilderFunc
}

// Registry maps processor names to their builders.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a builder under name. Registering a name twice panics.
func (r *Registry) Register(name string, role Role, build BuilderFunc) {
	if _, dup := r.entries[name]; dup {
		panic("postprocessors: duplicate processor " + name)
	}
	r.entries[name] = entry{role: role, build: build}
}

// Build creates a single processor by name.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (available: %s)",
			domain.ErrInvalidInput, name, strings.Join(r.Names(), ", "))
	}
	proc, err := e.build(cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	return proc, nil
}

// BuildPipeline creates a pipeline from an ordered list of processor names.
// The first processor must be a splitter and the rest transformers, since a
// later splitter would discard everything before it. cfgs holds per-processor
// settings keyed by name and may be nil.
func (r *Registry) BuildPipeline(names []string, cfgs map[string]map[string]any) (*Pipeline, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty processor list", domain.ErrInvalidInput)
	}

	p := NewPipeline()
	for i, name := range names {
		if e, ok := r.entries[name]; ok {
			if i == 0 && e.role != Splitter {
				return nil, fmt.Errorf("%w: pipeline must start with a splitter, %s is a %s",
					domain.ErrInvalidInput, name, e.role)
			}
			if i > 0 && e.role == Splitter {
				return nil, fmt.Errorf("%w: splitter %s at position %d would discard earlier chunks",
					domain.ErrInvalidInput, name, i+1)
			}
		}
		proc, err := r.Build(name, cfgs[name])
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
