// Package openai embeds chunks through the OpenAI embeddings API, or any
// server that speaks it, using the go-openai client.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	fallbackDimensions = 1536
)

var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the service. APIKey is required; zero values elsewhere
// select the defaults. BaseURL may point at Azure OpenAI or a compatible
// server.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions shortens the vectors of text-embedding-3 models. For other
	// models it only declares the expected size.
	Dimensions int
}

type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int

	// sendDimensions is set when the model accepts a dimensions parameter.
	sendDimensions bool
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}
	if dims == 0 {
		dims = fallbackDimensions
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &EmbeddingService{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		dimensions:     dims,
		sendDimensions: cfg.Dimensions > 0 && strings.HasPrefix(cfg.Model, "text-embedding-3"),
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds every chunk in one request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkVector, error) {
	if len(chunks) == 0 {
		return []domain.ChunkVector{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChunkVector, len(chunks))
	for i, c := range chunks {
		out[i] = domain.ChunkVector{Index: c.Index, Vector: vectors[i]}
	}
	return out, nil
}

// embed returns vectors in input order. The API reports each vector's input
// position in Data[i].Index, which is not guaranteed to match response order.
func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: texts,
	}
	if s.sendDimensions {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, wrapError("embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs",
			domain.ErrEmbedderUnavailable, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: openai returned unexpected embedding index %d",
				domain.ErrEmbedderUnavailable, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return wrapError("ping", err)
	}
	return nil
}

func (s *EmbeddingService) Close() error {
	return nil
}

// wrapError marks every client failure as ErrEmbedderUnavailable and, for API
// errors, names the status so key and quota problems are recognisable.
func wrapError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		hint := ""
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			hint = " (check the API key)"
		case http.StatusTooManyRequests:
			hint = " (rate limited or out of quota)"
		}
		return fmt.Errorf("%w: openai %s: status %d: %s%s",
			domain.ErrEmbedderUnavailable, op, apiErr.HTTPStatusCode, apiErr.Message, hint)
	}
	return fmt.Errorf("%w: openai %s: %w", domain.ErrEmbedderUnavailable, op, err)
}
