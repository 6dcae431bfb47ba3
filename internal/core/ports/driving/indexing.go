package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// IndexingService turns stored documents into searchable index entries.
type IndexingService interface {
	// IndexDocument chunks, embeds and activates one document.
	// A request for a document that is already being indexed is a no-op.
	IndexDocument(ctx context.Context, documentID int64) error

	// RemoveDocument drops a document's entries from the index and the store.
	// Returns the number of index entries removed.
	RemoveDocument(ctx context.Context, documentID int64) (int, error)

	// ReindexAll indexes every stored document. Failures are joined.
	ReindexAll(ctx context.Context) error

	// RetryFailed re-indexes every document in failed status.
	// Returns the number of documents that indexed successfully.
	RetryFailed(ctx context.Context) (int, error)

	// Rebuild loads the embeddings of every indexed document into the index.
	// Returns the number of entries loaded.
	Rebuild(ctx context.Context) (int, error)

	// Status reports a document's indexing state.
	Status(ctx context.Context, documentID int64) (*IndexingStatus, error)
}

// IndexingStatus describes where a document is in the indexing lifecycle.
type IndexingStatus struct {
	DocumentID   int64
	Status       domain.DocumentStatus
	ErrorMessage string

	// InFlight is true while an indexing run owns the document.
	InFlight bool

	// Entries is the number of index entries for the document.
	Entries int
}
