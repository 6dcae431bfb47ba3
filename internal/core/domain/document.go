package domain

import "time"

// DocumentStatus tracks a document through the indexing lifecycle.
//
//	pending -> processing -> indexed | failed
type DocumentStatus string

// Document lifecycle states.
const (
	// StatusPending means the document is stored but has never been indexed.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing means an indexing run currently owns the document.
	StatusProcessing DocumentStatus = "processing"

	// StatusIndexed means every chunk has a persisted embedding.
	StatusIndexed DocumentStatus = "indexed"

	// StatusFailed means the last indexing run failed. See Document.ErrorMessage.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusIndexed, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states an indexing run finishes in.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document is a unit of content owned by a tenant.
// The retrieval core reads its status, creation time, attachments,
// namespace and extracted text. Everything else belongs to the store.
type Document struct {
	// ID is the unique identifier for the document.
	ID int64

	// Title is the human-readable title.
	Title string

	// Content is the extracted text that gets chunked and embedded.
	Content string

	// Namespace is the tenant tag. Nil means the document has no tag.
	Namespace *string

	// Status is the current indexing state.
	Status DocumentStatus

	// ErrorMessage holds the failure reason when Status is StatusFailed.
	ErrorMessage string

	// Attachments are media items linked to the document.
	Attachments []Attachment

	// CreatedAt drives freshness ranking. The zero value means unknown.
	CreatedAt time.Time

	// UpdatedAt is when the document record last changed.
	UpdatedAt time.Time
}

// NamespaceValue returns the namespace tag or "" when absent.
func (d *Document) NamespaceValue() string {
	if d.Namespace == nil {
		return ""
	}
	return *d.Namespace
}

// Chunk is a bounded span of document text produced by the chunker.
// Chunks are transient: only their embeddings are persisted.
type Chunk struct {
	// Index is the zero-based position within the document.
	Index int

	// Text is the chunk content.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int
}

// ChunkVector pairs a chunk index with the vector the embedder returned for it.
type ChunkVector struct {
	Index  int
	Vector []float32
}

// Embedding is the persisted vector for one chunk of one document.
type Embedding struct {
	// ID is assigned by the document store and doubles as the index entry id.
	ID int64

	// DocumentID links to the owning Document.
	DocumentID int64

	// ChunkIndex is the chunk position within the document.
	ChunkIndex int

	// Vector has unit L2 norm.
	Vector []float32

	// Namespace is copied from the document at indexing time.
	Namespace *string

	// ChunkText is the text the vector was computed from.
	ChunkText string

	// Metadata carries optional key-value pairs alongside the vector.
	Metadata map[string]any
}

// Dim returns the vector dimension.
func (e *Embedding) Dim() int {
	return len(e.Vector)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
