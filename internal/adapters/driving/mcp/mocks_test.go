package mcp

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	gotQuery  string
	gotK      int
	gotFilter domain.SearchFilter
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	k int,
	filter domain.SearchFilter,
) ([]domain.SearchResult, error) {
	m.gotQuery = query
	m.gotK = k
	m.gotFilter = filter
	return m.results, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	content   string
	err       error

	added *driving.NewDocument
}

func (m *mockDocumentService) Add(_ context.Context, doc driving.NewDocument) (*domain.Document, error) {
	m.added = &doc
	if m.err != nil {
		return nil, m.err
	}
	if m.document != nil {
		return m.document, nil
	}
	return &domain.Document{ID: 1, Title: doc.Title, Status: domain.StatusPending}, nil
}

func (m *mockDocumentService) List(_ context.Context, _ domain.DocumentStatus) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ int64) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) GetContent(_ context.Context, _ int64) (string, error) {
	return m.content, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ int64) error {
	return m.err
}

// mockIndexingService is a mock implementation of driving.IndexingService.
type mockIndexingService struct {
	status  *driving.IndexingStatus
	removed int
	err     error

	indexed []int64
}

func (m *mockIndexingService) IndexDocument(_ context.Context, documentID int64) error {
	m.indexed = append(m.indexed, documentID)
	return m.err
}

func (m *mockIndexingService) RemoveDocument(_ context.Context, _ int64) (int, error) {
	return m.removed, m.err
}

func (m *mockIndexingService) ReindexAll(_ context.Context) error {
	return m.err
}

func (m *mockIndexingService) RetryFailed(_ context.Context) (int, error) {
	return 0, m.err
}

func (m *mockIndexingService) Rebuild(_ context.Context) (int, error) {
	return 0, m.err
}

func (m *mockIndexingService) Status(_ context.Context, documentID int64) (*driving.IndexingStatus, error) {
	if m.status != nil {
		return m.status, nil
	}
	return &driving.IndexingStatus{DocumentID: documentID, Status: domain.StatusIndexed}, nil
}

// mockSnapshotService is a mock implementation of driving.SnapshotService.
type mockSnapshotService struct {
	result *domain.SnapshotSaveResult
	stats  domain.IndexStats
	err    error

	saves       int
	forcedSaves int
}

func (m *mockSnapshotService) Save(_ context.Context) (*domain.SnapshotSaveResult, error) {
	m.forcedSaves++
	return m.saveResult()
}

func (m *mockSnapshotService) SaveIfChanged(_ context.Context) (*domain.SnapshotSaveResult, error) {
	m.saves++
	return m.saveResult()
}

func (m *mockSnapshotService) saveResult() (*domain.SnapshotSaveResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.SnapshotSaveResult{Skipped: true}, nil
}

func (m *mockSnapshotService) Load(_ context.Context) (*domain.SnapshotLoadResult, error) {
	return &domain.SnapshotLoadResult{Outcome: domain.SnapshotMissing}, m.err
}

func (m *mockSnapshotService) Stats() domain.IndexStats {
	return m.stats
}
