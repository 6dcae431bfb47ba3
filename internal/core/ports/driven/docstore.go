package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DocumentStore persists documents and their chunk embeddings.
type DocumentStore interface {
	// SaveDocument inserts or updates a document.
	// A zero ID is replaced with a store-assigned one.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound when absent.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// ListDocuments returns documents in ID order.
	// An empty status returns every document.
	ListDocuments(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)

	// UpdateStatus sets the indexing status and error message of a document.
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg string) error

	// DeleteDocument removes a document and its embeddings.
	DeleteDocument(ctx context.Context, id int64) error

	// ReplaceEmbeddings atomically swaps a document's embeddings for the given
	// set and returns the assigned embedding IDs in input order.
	ReplaceEmbeddings(ctx context.Context, documentID int64, embeddings []domain.Embedding) ([]int64, error)

	// GetEmbeddingsByDocument returns the embeddings of an indexed document
	// ordered by chunk index. Documents in any other status yield none.
	GetEmbeddingsByDocument(ctx context.Context, documentID int64) ([]domain.Embedding, error)

	// ListIndexedEmbeddings returns the embeddings of every indexed document.
	ListIndexedEmbeddings(ctx context.Context) ([]domain.Embedding, error)

	// DeleteEmbeddings removes every embedding of a document and returns the count.
	DeleteEmbeddings(ctx context.Context, documentID int64) (int, error)
}
