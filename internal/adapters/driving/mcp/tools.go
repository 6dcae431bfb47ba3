package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// defaultSearchLimit applies when a search call omits the limit.
const defaultSearchLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the natural language query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Namespaces []string `json:"namespaces,omitempty" jsonschema:"namespaces the caller may see; * matches every document"`
	DocumentID int64    `json:"document_id,omitempty" jsonschema:"restrict results to one document"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID  int64              `json:"document_id"`
	ChunkIndex  int                `json:"chunk_index"`
	Text        string             `json:"text"`
	Namespace   string             `json:"namespace,omitempty"`
	Score       float64            `json:"score"`
	Similarity  float64            `json:"similarity"`
	Freshness   float64            `json:"freshness"`
	Attachments []AttachmentOutput `json:"attachments,omitempty"`
}

// AttachmentOutput is a media item linked to a result.
type AttachmentOutput struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// AddDocumentInput is the input schema for the add_document tool.
type AddDocumentInput struct {
	Title     string   `json:"title,omitempty" jsonschema:"document title"`
	Content   string   `json:"content" jsonschema:"document text to index"`
	Namespace string   `json:"namespace,omitempty" jsonschema:"tenant namespace tag"`
	Images    []string `json:"images,omitempty" jsonschema:"image URLs to attach"`
	Index     bool     `json:"index,omitempty" jsonschema:"index the document immediately"`
}

// AddDocumentOutput is the output schema for the add_document tool.
type AddDocumentOutput struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentInput identifies a document.
type DocumentInput struct {
	DocumentID int64 `json:"document_id" jsonschema:"the document ID"`
}

// DocumentStatusOutput reports a document's indexing state.
type DocumentStatusOutput struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	Entries    int    `json:"entries"`
	InFlight   bool   `json:"in_flight"`
	Error      string `json:"error,omitempty"`
}

// RemoveDocumentOutput is the output schema for the remove_document tool.
type RemoveDocumentOutput struct {
	DocumentID int64 `json:"document_id"`
	Removed    int   `json:"removed"`
}

// SaveSnapshotInput is the input schema for the save_snapshot tool.
type SaveSnapshotInput struct {
	Force bool `json:"force,omitempty" jsonschema:"write even if the index is unchanged"`
}

// SaveSnapshotOutput is the output schema for the save_snapshot tool.
type SaveSnapshotOutput struct {
	Skipped  bool   `json:"skipped"`
	Entries  int    `json:"entries"`
	Bytes    int    `json:"bytes"`
	Location string `json:"location,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools whose port is missing are left out.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across all indexed documents, ranked by similarity and freshness",
	}, s.handleSearch)

	if s.ports.Document != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "add_document",
			Description: "Store a new document and optionally index it",
		}, s.handleAddDocument)
	}

	if s.ports.Indexing != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_document",
			Description: "Chunk, embed and activate a stored document",
		}, s.handleIndexDocument)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "remove_document",
			Description: "Drop a document's entries from the index",
		}, s.handleRemoveDocument)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "document_status",
			Description: "Report a document's indexing status",
		}, s.handleDocumentStatus)
	}

	if s.ports.Snapshot != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "save_snapshot",
			Description: "Persist the index to the configured snapshot backend",
		}, s.handleSaveSnapshot)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	filter := domain.SearchFilter{Namespaces: input.Namespaces}
	if input.DocumentID > 0 {
		id := input.DocumentID
		filter.DocumentID = &id
	}

	results, err := s.ports.Search.Search(ctx, input.Query, limit, filter)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		r := &results[i]
		out := SearchResultOutput{
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.ChunkText,
			Score:      r.AdjustedScore,
			Similarity: r.RawScore,
			Freshness:  r.FreshnessFactor,
		}
		if r.Namespace != nil {
			out.Namespace = *r.Namespace
		}
		for _, a := range r.Attachments {
			out.Attachments = append(out.Attachments, AttachmentOutput{
				Type: string(a.Type()),
				URL:  attachmentURL(a),
			})
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleAddDocument handles the add_document tool invocation.
func (s *Server) handleAddDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddDocumentInput,
) (*mcp.CallToolResult, AddDocumentOutput, error) {
	if input.Index && s.ports.Indexing == nil {
		return nil, AddDocumentOutput{}, fmt.Errorf("indexing: %w", errToolUnavailable)
	}

	attachments := make([]domain.Attachment, 0, len(input.Images))
	for _, u := range input.Images {
		attachments = append(attachments, domain.ImageAttachment{URL: u})
	}

	doc, err := s.ports.Document.Add(ctx, driving.NewDocument{
		Title:       input.Title,
		Content:     input.Content,
		Namespace:   input.Namespace,
		Attachments: attachments,
	})
	if err != nil {
		return nil, AddDocumentOutput{}, err
	}

	output := AddDocumentOutput{DocumentID: doc.ID, Status: doc.Status.String()}
	if !input.Index {
		return nil, output, nil
	}

	if err := s.ports.Indexing.IndexDocument(ctx, doc.ID); err != nil {
		return nil, output, fmt.Errorf("indexing document %d: %w", doc.ID, err)
	}
	s.persist(ctx)
	output.Status = domain.StatusIndexed.String()
	return nil, output, nil
}

// handleIndexDocument handles the index_document tool invocation.
func (s *Server) handleIndexDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	if err := s.ports.Indexing.IndexDocument(ctx, input.DocumentID); err != nil {
		return nil, DocumentStatusOutput{}, err
	}
	s.persist(ctx)
	return s.documentStatus(ctx, input.DocumentID)
}

// handleDocumentStatus handles the document_status tool invocation.
func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	return s.documentStatus(ctx, input.DocumentID)
}

func (s *Server) documentStatus(ctx context.Context, documentID int64) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	st, err := s.ports.Indexing.Status(ctx, documentID)
	if err != nil {
		return nil, DocumentStatusOutput{}, err
	}
	return nil, DocumentStatusOutput{
		DocumentID: st.DocumentID,
		Status:     st.Status.String(),
		Entries:    st.Entries,
		InFlight:   st.InFlight,
		Error:      st.ErrorMessage,
	}, nil
}

// handleRemoveDocument handles the remove_document tool invocation.
func (s *Server) handleRemoveDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, RemoveDocumentOutput, error) {
	removed, err := s.ports.Indexing.RemoveDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, RemoveDocumentOutput{}, err
	}
	s.persist(ctx)
	return nil, RemoveDocumentOutput{DocumentID: input.DocumentID, Removed: removed}, nil
}

// handleSaveSnapshot handles the save_snapshot tool invocation.
func (s *Server) handleSaveSnapshot(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SaveSnapshotInput,
) (*mcp.CallToolResult, SaveSnapshotOutput, error) {
	save := s.ports.Snapshot.SaveIfChanged
	if input.Force {
		save = s.ports.Snapshot.Save
	}
	res, err := save(ctx)
	if err != nil {
		return nil, SaveSnapshotOutput{}, err
	}
	return nil, SaveSnapshotOutput{
		Skipped:  res.Skipped,
		Entries:  res.Entries,
		Bytes:    res.Bytes,
		Location: res.Location,
	}, nil
}

// persist saves the index after a mutation. Failures are logged only.
func (s *Server) persist(ctx context.Context) {
	if s.ports.Snapshot == nil {
		return
	}
	if _, err := s.ports.Snapshot.SaveIfChanged(ctx); err != nil {
		logger.Warn("snapshot save after mcp call failed", "error", err)
	}
}

func attachmentURL(a domain.Attachment) string {
	switch v := a.(type) {
	case domain.ImageAttachment:
		return v.URL
	case domain.VideoAttachment:
		return v.URL
	case domain.AudioAttachment:
		return v.URL
	case domain.DocumentAttachment:
		return v.URL
	default:
		return ""
	}
}
