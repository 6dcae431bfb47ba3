package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SnapshotService persists and restores the vector index.
type SnapshotService interface {
	// Save writes a full snapshot of the index.
	Save(ctx context.Context) (*domain.SnapshotSaveResult, error)

	// SaveIfChanged writes a snapshot only when the index changed since the
	// last save or load.
	SaveIfChanged(ctx context.Context) (*domain.SnapshotSaveResult, error)

	// Load replaces the index with the stored snapshot. A missing or corrupt
	// artifact leaves the index empty and is reported in the result, not as an error.
	Load(ctx context.Context) (*domain.SnapshotLoadResult, error)

	// Stats summarises the current index.
	Stats() domain.IndexStats
}
