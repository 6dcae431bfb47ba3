package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu         sync.RWMutex
	documents  map[int64]domain.Document
	embeddings map[int64][]domain.Embedding
	nextDocID  int64
	nextEmbID  int64
	now        func() time.Time
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents:  make(map[int64]domain.Document),
		embeddings: make(map[int64][]domain.Embedding),
		now:        time.Now,
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	if !doc.Status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, doc.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == 0 {
		s.nextDocID++
		doc.ID = s.nextDocID
	} else if doc.ID > s.nextDocID {
		s.nextDocID = doc.ID
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.now().UTC()
	}

	stored := copyDocument(*doc)
	if prev, ok := s.documents[doc.ID]; ok && !prev.CreatedAt.IsZero() {
		stored.CreatedAt = prev.CreatedAt
	}
	s.documents[doc.ID] = stored
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id int64) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

// ListDocuments returns documents in ID order.
func (s *DocumentStore) ListDocuments(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, copyDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateStatus sets the indexing status of a document.
func (s *DocumentStore) UpdateStatus(_ context.Context, id int64, status domain.DocumentStatus, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errMsg
	doc.UpdatedAt = s.now().UTC()
	s.documents[id] = doc
	return nil
}

// DeleteDocument removes a document and its embeddings.
func (s *DocumentStore) DeleteDocument(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.embeddings, id)
	return nil
}

// ReplaceEmbeddings swaps a document's embeddings for the given set.
func (s *DocumentStore) ReplaceEmbeddings(_ context.Context, documentID int64, embeddings []domain.Embedding) ([]int64, error) {
	for _, e := range embeddings {
		if e.DocumentID != 0 && e.DocumentID != documentID {
			return nil, fmt.Errorf("%w: embedding for document %d in batch for %d",
				domain.ErrInvalidInput, e.DocumentID, documentID)
		}
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has an empty vector", domain.ErrInvalidInput, e.ChunkIndex)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[documentID]; !ok {
		return nil, domain.ErrNotFound
	}

	stored := make([]domain.Embedding, len(embeddings))
	ids := make([]int64, len(embeddings))
	for i, e := range embeddings {
		s.nextEmbID++
		e = copyEmbedding(e)
		e.ID = s.nextEmbID
		e.DocumentID = documentID
		stored[i] = e
		ids[i] = e.ID
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })
	s.embeddings[documentID] = stored
	return ids, nil
}

// GetEmbeddingsByDocument returns the embeddings of an indexed document.
func (s *DocumentStore) GetEmbeddingsByDocument(_ context.Context, documentID int64) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok || doc.Status != domain.StatusIndexed {
		return nil, nil
	}
	return copyEmbeddings(s.embeddings[documentID]), nil
}

// ListIndexedEmbeddings returns the embeddings of every indexed document in ID order.
func (s *DocumentStore) ListIndexedEmbeddings(_ context.Context) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Embedding
	for id, embs := range s.embeddings {
		if doc, ok := s.documents[id]; ok && doc.Status == domain.StatusIndexed {
			out = append(out, copyEmbeddings(embs)...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteEmbeddings removes every embedding of a document.
func (s *DocumentStore) DeleteEmbeddings(_ context.Context, documentID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.embeddings[documentID])
	delete(s.embeddings, documentID)
	return n, nil
}

func copyDocument(doc domain.Document) domain.Document {
	if doc.Namespace != nil {
		ns := *doc.Namespace
		doc.Namespace = &ns
	}
	if doc.Attachments != nil {
		doc.Attachments = append([]domain.Attachment(nil), doc.Attachments...)
	}
	return doc
}

func copyEmbedding(e domain.Embedding) domain.Embedding {
	e.Vector = append([]float32(nil), e.Vector...)
	if e.Namespace != nil {
		ns := *e.Namespace
		e.Namespace = &ns
	}
	if e.Metadata != nil {
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	return e
}

func copyEmbeddings(in []domain.Embedding) []domain.Embedding {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Embedding, len(in))
	for i, e := range in {
		out[i] = copyEmbedding(e)
	}
	return out
}
