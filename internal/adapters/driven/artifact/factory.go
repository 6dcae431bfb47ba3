package artifact

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/adapters/driven/artifact/compress"
	"github.com/custodia-labs/recall/internal/adapters/driven/artifact/local"
	"github.com/custodia-labs/recall/internal/adapters/driven/artifact/minio"
	"github.com/custodia-labs/recall/internal/adapters/driven/artifact/s3"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// New builds the artifact store for settings, wrapped with the configured compression.
func New(ctx context.Context, settings domain.SnapshotSettings) (driven.ArtifactStore, error) {
	var (
		store driven.ArtifactStore
		err   error
	)

	switch settings.Backend {
	case domain.SnapshotBackendLocal, "":
		store, err = local.NewStore(settings.Dir)
	case domain.SnapshotBackendS3:
		store, err = s3.NewFromSettings(ctx, settings)
	case domain.SnapshotBackendMinIO:
		store, err = minio.NewFromSettings(settings)
	default:
		return nil, fmt.Errorf("%w: snapshot backend %q", domain.ErrInvalidInput, settings.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s artifact store: %w", settings.Backend, err)
	}

	wrapped, err := compress.New(store, settings.Compression)
	if err != nil {
		return nil, err
	}

	logger.Debug("artifact store ready",
		"backend", settings.Backend,
		"compression", settings.Compression,
		"location", wrapped.Location(snapshotName(settings)))
	return wrapped, nil
}

func snapshotName(settings domain.SnapshotSettings) string {
	if settings.Name == "" {
		return domain.DefaultSnapshotName
	}
	return settings.Name
}
