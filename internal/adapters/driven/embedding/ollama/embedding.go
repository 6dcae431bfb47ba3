// Package ollama provides an embedding service adapter for a local Ollama
// server, using the /api/embed batch endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768 // nomic-embed-text
)

// maxErrorBody bounds how much of an error response is quoted back.
const maxErrorBody = 512

// Config holds configuration for the Ollama embedding service.
// Zero values select the defaults above.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// KeepAlive is forwarded as keep_alive ("5m", "-1") to control how long
	// the model stays loaded. Empty leaves the server default.
	KeepAlive string
}

// EmbeddingService generates embeddings using Ollama.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	keepAlive  string
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		keepAlive:  cfg.KeepAlive,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds every chunk in a single /api/embed call. Inputs longer
// than the model context are truncated by the server.
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

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:     s.model,
		Input:     texts,
		Truncate:  true,
		KeepAlive: s.keepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: send request: %w", domain.ErrEmbedderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.apiError(resp)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: ollama: decode response: %w", domain.ErrEmbedderUnavailable, err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			domain.ErrEmbedderUnavailable, len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("%w: ollama model %s returned %d dimensions for input %d, configured %d",
				domain.ErrDimensionMismatch, s.model, len(v), i, s.dimensions)
		}
	}
	return out.Embeddings, nil
}

// apiError turns a non-200 response into an error. Ollama reports errors as
// {"error": "..."}; a 404 on embed means the model has not been pulled.
func (s *EmbeddingService) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var apiErr errorResponse
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		msg += fmt.Sprintf(" (try: ollama pull %s)", s.model)
	}
	return fmt.Errorf("%w: ollama error (status %d): %s", domain.ErrEmbedderUnavailable, resp.StatusCode, msg)
}

func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks that the server is reachable and the model has been pulled,
// using /api/tags so no inference runs.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama: ping failed: %w", domain.ErrEmbedderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.apiError(resp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: ollama: decode tags: %w", domain.ErrEmbedderUnavailable, err)
	}
	for _, m := range tags.Models {
		if sameModel(m.Name, s.model) || sameModel(m.Model, s.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: ollama model %s is not installed (try: ollama pull %s)",
		domain.ErrEmbedderUnavailable, s.model, s.model)
}

// sameModel compares model names, treating a missing tag as ":latest".
func sameModel(a, b string) bool {
	norm := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return a != "" && norm(a) == norm(b)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *EmbeddingService) Close() error {
	return nil
}
