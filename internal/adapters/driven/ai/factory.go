// Package ai builds the configured embedding service and checks that it can
// be reached.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/recall/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// pingTimeout bounds the connectivity check made before a service is used.
const pingTimeout = 5 * time.Second

const fixHint = "Run 'recall settings embedding' to fix"

type builder func(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error)

var builders = map[domain.AIProvider]builder{
	domain.AIProviderOllama: newOllama,
	domain.AIProviderOpenAI: newOpenAI,
}

// Embedder is the embedding service selected at startup. Service is nil when
// the provider is unset or unreachable; Warnings says why. Indexing and
// search are unavailable in that case, document management is not.
type Embedder struct {
	Service  driven.EmbeddingService
	Warnings []string
}

// Close releases the service, if any.
func (e *Embedder) Close() {
	if e.Service != nil {
		e.Service.Close()
	}
}

// Connect builds the configured service and pings it. It never fails:
// problems are recorded as warnings on the result.
func Connect(ctx context.Context, settings *domain.EmbeddingSettings) *Embedder {
	out := &Embedder{}

	svc, err := New(settings)
	switch {
	case err != nil:
		out.Warnings = append(out.Warnings, fmt.Sprintf("%v. %s", err, fixHint))
		return out
	case svc == nil:
		out.Warnings = append(out.Warnings, "embedding provider not configured. "+fixHint)
		return out
	}

	if err := ping(ctx, svc); err != nil {
		svc.Close()
		logger.Warn("embedding service unavailable",
			"provider", settings.Provider, "model", svc.ModelName(), "error", err)
		out.Warnings = append(out.Warnings, fmt.Sprintf("embedding service unreachable (%v). %s", err, fixHint))
		return out
	}

	out.Service = svc
	return out
}

// New builds the service for settings without contacting it. It returns
// nil, nil when the provider is not configured. A positive
// RequestsPerSecond wraps the service in a rate limiter.
func New(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	build, ok := builders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}
	svc, err := build(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrEmbedderUnavailable, settings.Provider, err)
	}
	return ratelimit.Wrap(svc, settings.RequestsPerSecond, max(settings.Concurrency, 1)), nil
}

// Probe builds a throwaway service for settings and pings it. Unconfigured
// settings pass.
func Probe(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := New(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return ping(ctx, svc)
}

func ping(ctx context.Context, svc driven.EmbeddingService) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

func newOllama(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dims := settings.Dimensions
	if dims == 0 {
		dims = domain.EmbeddingDimensions()[settings.Model]
	}
	if dims == 0 {
		dims = ollamaembed.DefaultDimensions
	}
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dims,
	}), nil
}

// newOpenAI forwards only an explicit dimension override; the adapter knows
// the model defaults.
func newOpenAI(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}
