package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers semantic queries over the vector index.
type SearchService struct {
	index     driven.VectorIndex
	embedder  driven.EmbeddingService
	docStore  driven.DocumentStore
	ranker    *FreshnessRanker
	overfetch int
}

// NewSearchService creates a new search service.
// A nil ranker uses the default freshness settings.
func NewSearchService(
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	docStore driven.DocumentStore,
	ranker *FreshnessRanker,
	overfetch int,
) *SearchService {
	if ranker == nil {
		ranker = NewFreshnessRanker(domain.DefaultAppSettings().Ranking)
	}
	if overfetch < 1 {
		overfetch = 1
	}
	return &SearchService{
		index:     index,
		embedder:  embedder,
		docStore:  docStore,
		ranker:    ranker,
		overfetch: overfetch,
	}
}

// Search embeds queryText and returns up to k results visible under filter,
// ranked by freshness-adjusted similarity.
func (s *SearchService) Search(
	ctx context.Context, queryText string, k int, filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")

	queryText = strings.TrimSpace(queryText)
	if queryText == "" || k <= 0 {
		logger.Debug("empty query or limit, returning no results", "k", k)
		return []domain.SearchResult{}, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("search: %w", domain.ErrEmbedderUnavailable)
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		logger.Warn("query embedding failed", "error", err)
		if !errors.Is(err, domain.ErrEmbedderUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedderUnavailable, err)
		}
		return nil, fmt.Errorf("search: %w", err)
	}
	query := normalize(vec)

	results, docs, err := s.collect(ctx, query, s.candidates(k), EntryFilter(filter))
	if err != nil {
		return nil, err
	}

	s.ranker.Rank(results, func(documentID int64) time.Time {
		return docs[documentID].CreatedAt
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Attachments = docs[results[i].DocumentID].Attachments
	}

	logger.Info("search completed",
		"k", k,
		"results", len(results),
		"namespaces", len(filter.Namespaces),
		"duration", time.Since(start))

	return results, nil
}

// candidates is the over-fetch window for k, bounded by the index size.
func (s *SearchService) candidates(k int) int {
	n := s.index.Len()
	if k > n/s.overfetch {
		return n
	}
	return k * s.overfetch
}

// collect fetches the candidate window and hydrates it. Entries of documents
// that are missing or not indexed (a failed re-index leaves its old entries
// in place) are excluded from the next scan and the window is fetched again,
// so they never crowd out visible entries. Each retry excludes at least one
// more document, which bounds the loop.
func (s *SearchService) collect(
	ctx context.Context, query []float32, window int, visible driven.EntryFilter,
) ([]domain.SearchResult, map[int64]*domain.Document, error) {
	docs := make(map[int64]*domain.Document)
	skipped := make(map[int64]bool)

	filter := func(id int64, meta *driven.EntryMetadata) bool {
		if skipped[meta.DocumentID] {
			return false
		}
		return visible == nil || visible(id, meta)
	}

	for attempt := 1; ; attempt++ {
		hits, err := s.index.Search(ctx, query, window, filter)
		if err != nil {
			logger.Warn("vector index search failed", "error", err)
			return nil, nil, fmt.Errorf("search: %w", err)
		}
		logger.Debug("vector search", "attempt", attempt, "candidates", window, "hits", len(hits))

		before := len(skipped)
		results, err := s.hydrate(ctx, hits, docs, skipped)
		if err != nil {
			return nil, nil, fmt.Errorf("hydrate results: %w", err)
		}
		if len(skipped) == before || len(hits) < window {
			return results, docs, nil
		}
	}
}

// hydrate turns hits into results, recording documents that are gone or no
// longer indexed in skipped. Documents are fetched once each across calls.
func (s *SearchService) hydrate(
	ctx context.Context, hits []driven.VectorHit, docs map[int64]*domain.Document, skipped map[int64]bool,
) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(hits))

	for _, hit := range hits {
		docID := hit.Meta.DocumentID
		if skipped[docID] {
			continue
		}
		if _, ok := docs[docID]; !ok {
			doc, err := s.docStore.GetDocument(ctx, docID)
			if errors.Is(err, domain.ErrNotFound) {
				skipped[docID] = true
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get document %d: %w", docID, err)
			}
			if doc.Status != domain.StatusIndexed {
				logger.Debug("skipping hit of unindexed document",
					"document_id", docID, "status", doc.Status)
				skipped[docID] = true
				continue
			}
			docs[docID] = doc
		}

		results = append(results, domain.SearchResult{
			EmbeddingID: hit.ID,
			DocumentID:  docID,
			ChunkIndex:  hit.Meta.ChunkIndex,
			ChunkText:   hit.Meta.Text,
			Namespace:   hit.Meta.Namespace,
			RawScore:    hit.Score,
			Metadata:    hit.Meta.Meta,
		})
	}

	return results, nil
}
