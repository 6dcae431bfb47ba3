package main

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/recall/internal/adapters/driven/artifact"
	"github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/postprocessors"
)

// bootstrap wires the service graph from the persisted settings and restores
// the index from its snapshot.
func bootstrap(ctx context.Context) (*cli.Services, func(), error) {
	configStore, err := file.NewConfigStore("", file.WithEnvPrefix("RECALL"))
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	pipeline, err := postprocessors.NewFromSettings(settings.Chunking)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}

	artifacts, err := artifact.New(ctx, settings.Snapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}

	store, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("document store opened", "path", store.Path())

	emb := ai.Connect(ctx, &settings.Embedding)
	embedder := emb.Service

	var indexOpts []flat.Option
	if embedder != nil {
		indexOpts = append(indexOpts, flat.WithDimension(embedder.Dimensions()))
	}
	index := flat.New(indexOpts...)

	docStore := store.DocumentStore()
	coordinator := services.NewIndexingCoordinator(docStore, index, embedder, pipeline, services.IndexingConfig{
		BatchSize:   settings.Embedding.BatchSize,
		Concurrency: settings.Embedding.Concurrency,
	})
	ranker := services.NewFreshnessRanker(settings.Ranking)
	search := services.NewSearchService(index, embedder, docStore, ranker, settings.Ranking.Overfetch)
	documents := services.NewDocumentService(docStore, coordinator)
	snapshots := services.NewSnapshotManager(index, artifacts, settings.Snapshot.Name)
	sched := services.NewScheduler(settingsSvc.GetSchedulerConfig(), store.SchedulerStore(), snapshots, coordinator)

	cleanup := func() {
		emb.Close()
		if err := index.Close(); err != nil {
			logger.Warn("close index", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}

	if err := restoreIndex(ctx, snapshots, coordinator); err != nil {
		cleanup()
		return nil, nil, err
	}

	return &cli.Services{
		Search:    search,
		Document:  documents,
		Indexing:  coordinator,
		Snapshot:  snapshots,
		Settings:  settingsSvc,
		Scheduler: sched,
		Warnings:  emb.Warnings,
	}, cleanup, nil
}

// rebuilder reloads the index from stored embeddings.
type rebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// restoreIndex loads the snapshot. When it is missing or corrupted the index
// is rebuilt from the embeddings in the store and a fresh snapshot written.
// Only context cancellation is fatal.
func restoreIndex(ctx context.Context, snapshots driving.SnapshotService, rb rebuilder) error {
	res, err := snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if res.Outcome == domain.SnapshotRestored {
		return nil
	}

	n, err := rb.Rebuild(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("index rebuild failed, starting empty", "error", err)
		return nil
	}
	if n == 0 {
		return nil
	}
	if _, err := snapshots.SaveIfChanged(ctx); err != nil {
		logger.Warn("snapshot not saved after rebuild", "error", err)
	}
	return nil
}
