// Package ratelimit throttles calls to an embedding service.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService wraps another embedder with a token bucket.
// Each Embed or EmbedBatch call consumes one token; Ping is not throttled.
type EmbeddingService struct {
	inner  driven.EmbeddingService
	bucket *rate.Limiter
}

// Wrap returns inner throttled to rps requests per second with the given burst.
// A non-positive rps returns inner unchanged.
func Wrap(inner driven.EmbeddingService, rps float64, burst int) driven.EmbeddingService {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &EmbeddingService{
		inner:  inner,
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for a token, then embeds text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Embed(ctx, text)
}

// EmbedBatch waits for a token, then embeds chunks.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkVector, error) {
	if err := s.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.EmbedBatch(ctx, chunks)
}

func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *EmbeddingService) Close() error {
	return s.inner.Close()
}
