package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: 2})
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, DefaultTimeout, s.client.Timeout)
	assert.NoError(t, s.Close())
}

func TestEmbedBatch(t *testing.T) {
	var got embedRequest
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		out := embedResponse{}
		for i := range got.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	vectors, err := s.EmbedBatch(context.Background(), []domain.Chunk{
		{Index: 4, Text: "alpha"},
		{Index: 7, Text: "beta"},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, []string{"alpha", "beta"}, got.Input)
	require.Len(t, vectors, 2)
	assert.Equal(t, domain.ChunkVector{Index: 4, Vector: []float32{0, 1}}, vectors[0])
	assert.Equal(t, domain.ChunkVector{Index: 7, Vector: []float32{1, 1}}, vectors[1])
}

func TestEmbedBatch_Empty(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:0"})
	vectors, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbed(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.25]]}`))
	})

	vec, err := s.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":`))
		}},
		{"count mismatch", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.handler)
			_, err := s.Embed(context.Background(), "query")
			assert.ErrorIs(t, err, domain.ErrEmbedderUnavailable)
			assert.True(t, domain.IsRetryable(err))
		})
	}
}

func TestEmbed_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewEmbeddingService(Config{BaseURL: url, Timeout: time.Second})
	_, err := s.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, domain.ErrEmbedderUnavailable)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	})

	_, err := s.Embed(context.Background(), "query")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.False(t, domain.IsRetryable(err))
}

func TestEmbed_ModelNotPulled(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nomic-embed-text\" not found, try pulling it first"}`))
	})

	_, err := s.Embed(context.Background(), "query")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedderUnavailable)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "not found, try pulling it first")
	assert.Contains(t, err.Error(), "ollama pull nomic-embed-text")
}

func TestEmbed_SendsOptions(t *testing.T) {
	var got embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	}))
	t.Cleanup(srv.Close)
	s := NewEmbeddingService(Config{BaseURL: srv.URL + "/", Model: "all-minilm", Dimensions: 2, KeepAlive: "10m"})

	_, err := s.Embed(context.Background(), "query")

	require.NoError(t, err)
	assert.Equal(t, "all-minilm", got.Model)
	assert.True(t, got.Truncate)
	assert.Equal(t, "10m", got.KeepAlive)
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		status  int
		body    string
		wantErr string
	}{
		{name: "untagged model matches latest", model: "nomic-embed-text", status: http.StatusOK,
			body: `{"models":[{"name":"nomic-embed-text:latest","model":"nomic-embed-text:latest"}]}`},
		{name: "tagged model", model: "mxbai-embed-large:335m", status: http.StatusOK,
			body: `{"models":[{"name":"llama3:8b"},{"name":"mxbai-embed-large:335m"}]}`},
		{name: "model missing", model: "nomic-embed-text", status: http.StatusOK,
			body: `{"models":[{"name":"llama3:8b"}]}`, wantErr: "ollama pull nomic-embed-text"},
		{name: "no models", model: "nomic-embed-text", status: http.StatusOK,
			body: `{"models":[]}`, wantErr: "not installed"},
		{name: "server down", model: "nomic-embed-text", status: http.StatusServiceUnavailable,
			wantErr: "status 503"},
		{name: "malformed tags", model: "nomic-embed-text", status: http.StatusOK,
			body: `{"models":`, wantErr: "decode tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tags", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)
			s := NewEmbeddingService(Config{BaseURL: srv.URL, Model: tt.model})

			err := s.Ping(context.Background())

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmbedderUnavailable)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSameModel(t *testing.T) {
	assert.True(t, sameModel("nomic-embed-text", "nomic-embed-text:latest"))
	assert.True(t, sameModel("bge-m3:567m", "bge-m3:567m"))
	assert.False(t, sameModel("bge-m3:567m", "bge-m3"))
	assert.False(t, sameModel("", "bge-m3"))
}
