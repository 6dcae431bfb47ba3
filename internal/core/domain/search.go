package domain

// SearchFilter restricts which index entries a query may return.
// The zero value matches everything.
type SearchFilter struct {
	// DocumentID limits results to one document. Nil or non-positive means any document.
	DocumentID *int64

	// Namespaces is the caller's allow-list of tenant tags.
	// Empty means no restriction. "*" matches every entry, tagged or not.
	Namespaces []string
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	// EmbeddingID identifies the matched index entry.
	EmbeddingID int64

	// DocumentID identifies the owning document.
	DocumentID int64

	// ChunkIndex is the matched chunk's position within the document.
	ChunkIndex int

	// ChunkText is the text of the matched chunk.
	ChunkText string

	// Namespace is the entry's tenant tag, nil when absent.
	Namespace *string

	// RawScore is the cosine similarity between query and entry.
	RawScore float64

	// FreshnessFactor is the multiplier applied for document age, in [1-AgeWeight, 1].
	FreshnessFactor float64

	// AdjustedScore is RawScore * FreshnessFactor. Results are ordered by it.
	AdjustedScore float64

	// Metadata carries the entry's stored metadata.
	Metadata map[string]any

	// Attachments are copied from the owning document.
	Attachments []Attachment
}
