package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DocumentService manages the documents the index is built from.
type DocumentService interface {
	// Add stores a new document in pending status and returns it with its ID.
	Add(ctx context.Context, doc NewDocument) (*domain.Document, error)

	// List returns documents, optionally restricted to a status.
	List(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID int64) (*domain.Document, error)

	// GetContent returns the document's extracted text.
	GetContent(ctx context.Context, documentID int64) (string, error)

	// Delete removes the document, its embeddings and its index entries.
	Delete(ctx context.Context, documentID int64) error
}

// NewDocument is the input to DocumentService.Add.
type NewDocument struct {
	Title       string
	Content     string
	Namespace   string
	Attachments []domain.Attachment
}
