package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages the documents the index is built from.
type DocumentService struct {
	docStore driven.DocumentStore
	indexer  driving.IndexingService
	now      func() time.Time
}

// NewDocumentService creates a new document service.
// The indexer is optional; without it Delete only touches the store.
func NewDocumentService(docStore driven.DocumentStore, indexer driving.IndexingService) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		indexer:  indexer,
		now:      time.Now,
	}
}

// Add stores a new pending document.
func (s *DocumentService) Add(ctx context.Context, in driving.NewDocument) (*domain.Document, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: document content is empty", domain.ErrInvalidInput)
	}
	if err := domain.ValidateAttachments(in.Attachments); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := &domain.Document{
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Namespace:   domain.StringPtr(strings.TrimSpace(in.Namespace)),
		Status:      domain.StatusPending,
		Attachments: in.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("document added",
		"document_id", doc.ID,
		"namespace", doc.NamespaceValue(),
		"attachments", len(doc.Attachments))
	return doc, nil
}

// List returns documents, optionally restricted to a status.
func (s *DocumentService) List(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	return s.docStore.ListDocuments(ctx, status)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID int64) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, documentID)
}

// GetContent returns the document's extracted text.
func (s *DocumentService) GetContent(ctx context.Context, documentID int64) (string, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// Delete removes the document's index entries, then the document and its embeddings.
func (s *DocumentService) Delete(ctx context.Context, documentID int64) error {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if s.indexer != nil {
		if _, err := s.indexer.RemoveDocument(ctx, documentID); err != nil {
			return err
		}
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("document deleted", "document_id", documentID)
	return nil
}
