package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SearchService answers semantic queries against the vector index.
type SearchService interface {
	// Search returns up to k results ranked by freshness-adjusted similarity.
	// A blank query or k <= 0 yields no results and no error.
	Search(ctx context.Context, query string, k int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}
