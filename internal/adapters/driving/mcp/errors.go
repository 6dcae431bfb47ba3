// Package mcp provides an MCP (Model Context Protocol) server adapter for Recall.
// It lets AI assistants search the index and manage documents over stdio or HTTP.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// errToolUnavailable is returned by tools whose port was not provided.
var errToolUnavailable = errors.New("mcp: tool is not available")
