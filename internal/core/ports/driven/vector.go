package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// VectorIndex stores unit-norm vectors with their chunk metadata and answers
// similarity queries. Implementations must be safe for concurrent use:
// searches may run in parallel, mutations are serialised.
//
// The reference implementation is an exhaustive scan. Approximate indexes
// can be swapped in behind this interface.
type VectorIndex interface {
	// Upsert inserts or replaces the entry with the given id.
	// The first vector fixes the index dimension; later vectors of a
	// different length fail with domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, id int64, vector []float32, meta EntryMetadata) error

	// ReplaceDocument atomically swaps every entry of a document for entries.
	// Returns the number of entries removed.
	ReplaceDocument(ctx context.Context, documentID int64, entries []IndexEntry) (int, error)

	// RemoveByDocument deletes all entries of a document and returns how many
	// were removed. Removing an unknown document is a no-op.
	RemoveByDocument(ctx context.Context, documentID int64) (int, error)

	// Search returns up to k entries passing filter, ordered by descending
	// dot product with query. Ties are broken by ascending entry id.
	// A nil filter admits every entry.
	Search(ctx context.Context, query []float32, k int, filter EntryFilter) ([]VectorHit, error)

	// Export returns a point-in-time copy of every entry ordered by id.
	Export(ctx context.Context) ([]IndexEntry, error)

	// Restore replaces the whole index with entries.
	Restore(ctx context.Context, entries []IndexEntry) error

	// Reset empties the index.
	Reset()

	// Len returns the number of entries.
	Len() int

	// Stats summarises the index.
	Stats() domain.IndexStats

	// Generation increases on every mutation.
	Generation() uint64

	// Close releases resources.
	Close() error
}

// EntryMetadata is the metadata stored beside each vector.
type EntryMetadata struct {
	DocumentID int64
	ChunkIndex int
	Namespace  *string
	Text       string
	Meta       map[string]any
}

// IndexEntry is one vector with its id and metadata.
type IndexEntry struct {
	ID     int64
	Vector []float32
	Meta   EntryMetadata
}

// EntryFilter decides whether an entry may appear in search results.
type EntryFilter func(id int64, meta *EntryMetadata) bool

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched entry.
	ID int64

	// Score is the dot product of the query and the entry vector.
	// For unit vectors this is the cosine similarity in [-1, 1].
	Score float64

	// Meta is a copy of the entry metadata.
	Meta EntryMetadata
}
