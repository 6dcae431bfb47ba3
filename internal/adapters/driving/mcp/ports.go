package mcp

import (
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search capabilities.
	Search driving.SearchService

	// Document manages stored documents.
	Document driving.DocumentService

	// Indexing chunks and embeds documents into the index.
	Indexing driving.IndexingService

	// Snapshot persists the index after mutating tool calls.
	Snapshot driving.SnapshotService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Document, Indexing and Snapshot are optional. Their tools are not registered without them.
	return nil
}
