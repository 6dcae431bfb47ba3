package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/postprocessors"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

// testStack wires the retrieval core over in-memory adapters.
// Documents are chunked two tokens at a time with no overlap.
type testStack struct {
	store    *memory.DocumentStore
	index    *flat.Index
	embedder *mockEmbedder
	indexer  *IndexingCoordinator
	docs     *DocumentService
	search   *SearchService
}

func newTestStack(t *testing.T, vectors map[string][]float32) *testStack {
	t.Helper()

	store := memory.NewDocumentStore()
	index := flat.New()
	embedder := newMockEmbedder(vectors)
	pipeline := postprocessors.NewPipeline(chunker.New(chunker.WithMaxTokens(2), chunker.WithOverlap(0)))
	indexer := NewIndexingCoordinator(store, index, embedder, pipeline, IndexingConfig{BatchSize: 2, Concurrency: 2})

	return &testStack{
		store:    store,
		index:    index,
		embedder: embedder,
		indexer:  indexer,
		docs:     NewDocumentService(store, indexer),
		search:   NewSearchService(index, embedder, store, nil, domain.DefaultOverfetch),
	}
}

// addIndexed stores and indexes a document.
func (s *testStack) addIndexed(t *testing.T, content, namespace string) *domain.Document {
	t.Helper()
	doc, err := s.docs.Add(context.Background(), driving.NewDocument{
		Title:     "doc",
		Content:   content,
		Namespace: namespace,
	})
	require.NoError(t, err)
	require.NoError(t, s.indexer.IndexDocument(context.Background(), doc.ID))
	return doc
}
