// Package domain defines the core business entities for Recall.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A stored document with its indexing status
//   - Attachment: A tagged union of media linked to a document
//   - Chunk: A bounded span of document text awaiting embedding
//   - Embedding: A unit-norm vector for one chunk
//   - SearchResult: A ranked hit with raw and freshness-adjusted scores
//   - IndexSnapshot: The serialised form of the vector index
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
