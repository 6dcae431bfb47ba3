package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, backend or variant.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbedderUnavailable indicates the embedding service failed or is not configured.
	// Callers may retry: the failure is transient from the index's point of view.
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSnapshotCorrupted indicates a snapshot artifact could not be decoded.
	// The index starts empty when this happens.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")

	// ErrIndexClosed indicates the vector index has been closed.
	ErrIndexClosed = errors.New("vector index closed")

	// ErrArtifactStoreUnavailable indicates the snapshot backend cannot be reached.
	ErrArtifactStoreUnavailable = errors.New("artifact store unavailable")

	// ErrTaskRunning indicates a scheduled task is already executing.
	ErrTaskRunning = errors.New("task already running")

	// ErrSchedulerStopped indicates the scheduler has been stopped.
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// IndexingStage names the step of an indexing run that failed.
type IndexingStage string

// Indexing stages in execution order.
const (
	StageLoad     IndexingStage = "load"
	StageChunk    IndexingStage = "chunk"
	StageEmbed    IndexingStage = "embed"
	StagePersist  IndexingStage = "persist"
	StageActivate IndexingStage = "activate"
)

// IndexingError reports a failed indexing run for one document.
type IndexingError struct {
	DocumentID int64
	Stage      IndexingStage
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing document %d failed at %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbedderUnavailable) || errors.Is(err, ErrArtifactStoreUnavailable)
}
