package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure IndexingCoordinator implements the interface.
var _ driving.IndexingService = (*IndexingCoordinator)(nil)

// IndexingConfig bounds the embedding work of one indexing run.
type IndexingConfig struct {
	// BatchSize is the number of chunks per embedder call.
	BatchSize int

	// Concurrency is the number of embedder calls in flight per run.
	Concurrency int
}

// IndexingCoordinator chunks, embeds, persists and activates documents.
//
// Indexing and removal of the same document are serialised by a per-document
// lock. A second IndexDocument for a document that is already being indexed
// returns immediately without doing any work.
type IndexingCoordinator struct {
	store    driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	pipeline driven.PostProcessorPipeline
	config   IndexingConfig

	locks *keyedLocks

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewIndexingCoordinator creates a coordinator. Zero config fields use the defaults.
func NewIndexingCoordinator(
	store driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	config IndexingConfig,
) *IndexingCoordinator {
	if config.BatchSize <= 0 {
		config.BatchSize = domain.DefaultBatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = domain.DefaultConcurrency
	}
	return &IndexingCoordinator{
		store:    store,
		index:    index,
		embedder: embedder,
		pipeline: pipeline,
		config:   config,
		locks:    newKeyedLocks(),
		inFlight: make(map[int64]struct{}),
	}
}

// IndexDocument makes one stored document searchable.
//
// On any failure the document is marked failed and an *domain.IndexingError
// is returned. Entries of a previous successful run stay in the index until
// the document is activated again.
func (c *IndexingCoordinator) IndexDocument(ctx context.Context, documentID int64) error {
	if !c.claim(documentID) {
		logger.Warn("concurrent indexing skipped", "document_id", documentID)
		return nil
	}
	defer c.unclaim(documentID)

	unlock, err := c.locks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	log := logger.With("run_id", uuid.NewString(), "document_id", documentID)
	start := time.Now()

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return &domain.IndexingError{DocumentID: documentID, Stage: domain.StageLoad, Err: err}
	}

	if err := c.store.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return &domain.IndexingError{DocumentID: documentID, Stage: domain.StageLoad, Err: err}
	}
	log.Debug("indexing started", "title", doc.Title)

	chunks, err := c.pipeline.Process(ctx, doc)
	if err != nil {
		return c.fail(ctx, log, documentID, domain.StageChunk, err)
	}

	vectors, err := c.embed(ctx, chunks)
	if err != nil {
		return c.fail(ctx, log, documentID, domain.StageEmbed, err)
	}

	embeddings := make([]domain.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = domain.Embedding{
			DocumentID: documentID,
			ChunkIndex: chunk.Index,
			Vector:     normalize(vectors[i]),
			Namespace:  doc.Namespace,
			ChunkText:  chunk.Text,
			Metadata:   chunkMetadata(doc, chunk),
		}
	}

	if _, err := c.store.ReplaceEmbeddings(ctx, documentID, embeddings); err != nil {
		return c.fail(ctx, log, documentID, domain.StagePersist, err)
	}

	// Flip to indexed first: the store only yields embeddings of indexed documents.
	if err := c.store.UpdateStatus(ctx, documentID, domain.StatusIndexed, ""); err != nil {
		return c.fail(ctx, log, documentID, domain.StagePersist, err)
	}

	loaded, err := c.activate(ctx, documentID)
	if err != nil {
		if _, rbErr := c.index.RemoveByDocument(context.WithoutCancel(ctx), documentID); rbErr != nil {
			log.Error("rolling back index entries failed", "error", rbErr)
		}
		return c.fail(ctx, log, documentID, domain.StageActivate, err)
	}

	log.Info("document indexed",
		"chunks", len(chunks),
		"entries", loaded,
		"duration", time.Since(start))
	return nil
}

// RemoveDocument drops a document's entries from the index, then its stored
// embeddings. The two steps are not atomic: a failure between them leaves
// stored embeddings that the next Rebuild reloads.
func (c *IndexingCoordinator) RemoveDocument(ctx context.Context, documentID int64) (int, error) {
	unlock, err := c.locks.Lock(ctx, documentID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	removed, err := c.index.RemoveByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("remove document %d from index: %w", documentID, err)
	}
	deleted, err := c.store.DeleteEmbeddings(ctx, documentID)
	if err != nil {
		return removed, fmt.Errorf("delete embeddings of document %d: %w", documentID, err)
	}

	logger.Info("removed",
		"document_id", documentID,
		"entries", removed,
		"embeddings", deleted)
	return removed, nil
}

// ReindexAll indexes every stored document with bounded parallelism.
// Individual failures do not stop the run and are joined into the result.
func (c *IndexingCoordinator) ReindexAll(ctx context.Context) error {
	docs, err := c.store.ListDocuments(ctx, "")
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	_, err = c.indexAll(ctx, docs)
	return err
}

// RetryFailed re-indexes every document in failed status and returns how
// many succeeded.
func (c *IndexingCoordinator) RetryFailed(ctx context.Context) (int, error) {
	docs, err := c.store.ListDocuments(ctx, domain.StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("list failed documents: %w", err)
	}
	return c.indexAll(ctx, docs)
}

// Rebuild replaces the index contents with the embeddings of every indexed
// document in the store.
func (c *IndexingCoordinator) Rebuild(ctx context.Context) (int, error) {
	embeddings, err := c.store.ListIndexedEmbeddings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list indexed embeddings: %w", err)
	}

	entries := make([]driven.IndexEntry, len(embeddings))
	for i := range embeddings {
		entries[i] = indexEntry(&embeddings[i])
	}
	if err := c.index.Restore(ctx, entries); err != nil {
		return 0, fmt.Errorf("restore index: %w", err)
	}

	logger.Info("index rebuilt from store", "entries", len(entries))
	return len(entries), nil
}

// Status reports a document's indexing state.
func (c *IndexingCoordinator) Status(ctx context.Context, documentID int64) (*driving.IndexingStatus, error) {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	status := &driving.IndexingStatus{
		DocumentID:   documentID,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
		InFlight:     c.isInFlight(documentID),
	}
	if doc.Status == domain.StatusIndexed {
		embeddings, err := c.store.GetEmbeddingsByDocument(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("get embeddings: %w", err)
		}
		status.Entries = len(embeddings)
	}
	return status, nil
}

// embed returns one vector per chunk, in chunk order.
func (c *IndexingCoordinator) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if c.embedder == nil {
		return nil, domain.ErrEmbedderUnavailable
	}

	position := make(map[int]int, len(chunks))
	for i, chunk := range chunks {
		position[chunk.Index] = i
	}

	vectors := make([][]float32, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	for start := 0; start < len(chunks); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		g.Go(func() error {
			out, err := c.embedder.EmbedBatch(gctx, batch)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, domain.ErrEmbedderUnavailable) {
					return err
				}
				return fmt.Errorf("%w: %w", domain.ErrEmbedderUnavailable, err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, cv := range out {
				pos, ok := position[cv.Index]
				if !ok || pos < start || pos >= end {
					return fmt.Errorf("%w: unexpected chunk index %d in batch", domain.ErrEmbedderUnavailable, cv.Index)
				}
				if vectors[pos] != nil {
					return fmt.Errorf("%w: chunk %d embedded twice", domain.ErrEmbedderUnavailable, cv.Index)
				}
				if len(cv.Vector) == 0 {
					return fmt.Errorf("%w: empty vector for chunk %d", domain.ErrEmbedderUnavailable, cv.Index)
				}
				vectors[pos] = cv.Vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: chunk %d was not embedded", domain.ErrEmbedderUnavailable, chunks[i].Index)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, chunks[i].Index, len(v), dim)
		}
	}
	if indexDim := c.index.Stats().Dimension; indexDim > 0 && indexDim != dim {
		return nil, fmt.Errorf("%w: embedder returned %d dimensions, index holds %d",
			domain.ErrDimensionMismatch, dim, indexDim)
	}
	return vectors, nil
}

// activate loads the persisted embeddings of an indexed document into the index.
func (c *IndexingCoordinator) activate(ctx context.Context, documentID int64) (int, error) {
	embeddings, err := c.store.GetEmbeddingsByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("load embeddings: %w", err)
	}
	entries := make([]driven.IndexEntry, len(embeddings))
	for i := range embeddings {
		entries[i] = indexEntry(&embeddings[i])
	}
	if _, err := c.index.ReplaceDocument(ctx, documentID, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// fail records a failed run on the document and builds the returned error.
func (c *IndexingCoordinator) fail(
	ctx context.Context, log *slog.Logger, documentID int64, stage domain.IndexingStage, cause error,
) error {
	ierr := &domain.IndexingError{DocumentID: documentID, Stage: stage, Err: cause}
	if err := c.store.UpdateStatus(context.WithoutCancel(ctx), documentID, domain.StatusFailed, ierr.Error()); err != nil {
		log.Error("recording indexing failure", "error", err)
	}
	log.Warn("indexing failed",
		"stage", string(stage),
		"retryable", domain.IsRetryable(cause),
		"error", cause)
	return ierr
}

func (c *IndexingCoordinator) indexAll(ctx context.Context, docs []domain.Document) (int, error) {
	var (
		mu        sync.Mutex
		errs      []error
		succeeded int
	)

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for i := range docs {
		id := docs[i].ID
		g.Go(func() error {
			err := c.IndexDocument(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			} else {
				succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("bulk indexing finished",
		"documents", len(docs),
		"succeeded", succeeded,
		"failed", len(errs))
	return succeeded, errors.Join(errs...)
}

func (c *IndexingCoordinator) claim(documentID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[documentID]; busy {
		return false
	}
	c.inFlight[documentID] = struct{}{}
	return true
}

func (c *IndexingCoordinator) unclaim(documentID int64) {
	c.mu.Lock()
	delete(c.inFlight, documentID)
	c.mu.Unlock()
}

func (c *IndexingCoordinator) isInFlight(documentID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[documentID]
	return ok
}

// chunkMetadata builds the free-form entry metadata. Numbers are stored as
// float64, the type they decode to from a snapshot or the embeddings table.
func chunkMetadata(doc *domain.Document, chunk domain.Chunk) map[string]any {
	meta := map[string]any{"tokenCount": float64(chunk.TokenCount)}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	return meta
}

func indexEntry(e *domain.Embedding) driven.IndexEntry {
	return driven.IndexEntry{
		ID:     e.ID,
		Vector: e.Vector,
		Meta: driven.EntryMetadata{
			DocumentID: e.DocumentID,
			ChunkIndex: e.ChunkIndex,
			Namespace:  e.Namespace,
			Text:       e.ChunkText,
			Meta:       e.Metadata,
		},
	}
}
