package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, title, content, namespace, status, error_message, attachments, created_at, updated_at`

// SaveDocument stores or updates a document.
// A zero ID inserts a new row and writes the assigned ID back to doc.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	if !doc.Status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, doc.Status)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.store.now().UTC()
	}

	attachmentsJSON, err := domain.MarshalAttachments(doc.Attachments)
	if err != nil {
		return fmt.Errorf("marshalling attachments: %w", err)
	}

	args := []any{
		doc.Title, doc.Content, nullStringPtr(doc.Namespace), string(doc.Status),
		nullString(doc.ErrorMessage), string(attachmentsJSON),
		formatNullableTime(doc.CreatedAt), formatNullableTime(doc.UpdatedAt),
	}

	if doc.ID == 0 {
		res, err := s.store.db.ExecContext(ctx, `
			INSERT INTO documents (title, content, namespace, status, error_message, attachments, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading document id: %w", err)
		}
		doc.ID = id
		return nil
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, namespace, status, error_message, attachments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			namespace = excluded.namespace,
			status = excluded.status,
			error_message = excluded.error_message,
			attachments = excluded.attachments,
			created_at = COALESCE(documents.created_at, excluded.created_at),
			updated_at = excluded.updated_at
	`, append([]any{doc.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns documents in ID order, optionally filtered by status.
func (s *documentStore) ListDocuments(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// UpdateStatus sets the indexing status of a document.
func (s *documentStore) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, string(status), nullString(errMsg), s.store.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and, through the foreign key cascade, its embeddings.
func (s *documentStore) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ReplaceEmbeddings swaps a document's embeddings in a single transaction.
func (s *documentStore) ReplaceEmbeddings(ctx context.Context, documentID int64, embeddings []domain.Embedding) ([]int64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE id = ?", documentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking document: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID); err != nil {
		return nil, fmt.Errorf("deleting embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (document_id, chunk_index, chunk_text, namespace, dimensions, vector, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(embeddings))
	for _, e := range embeddings {
		if e.DocumentID != 0 && e.DocumentID != documentID {
			return nil, fmt.Errorf("%w: embedding for document %d in batch for %d",
				domain.ErrInvalidInput, e.DocumentID, documentID)
		}
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has an empty vector", domain.ErrInvalidInput, e.ChunkIndex)
		}

		metadataJSON, err := marshalMetadata(e.Metadata)
		if err != nil {
			return nil, err
		}

		res, err := stmt.ExecContext(ctx, documentID, e.ChunkIndex, e.ChunkText,
			nullStringPtr(e.Namespace), len(e.Vector), float32SliceToBytes(e.Vector), metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("saving embedding for chunk %d: %w", e.ChunkIndex, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading embedding id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ids, nil
}

// GetEmbeddingsByDocument returns the embeddings of an indexed document.
func (s *documentStore) GetEmbeddingsByDocument(ctx context.Context, documentID int64) ([]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.document_id, e.chunk_index, e.chunk_text, e.namespace, e.vector, e.metadata
		FROM embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE e.document_id = ? AND d.status = ?
		ORDER BY e.chunk_index
	`, documentID, string(domain.StatusIndexed))
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// ListIndexedEmbeddings returns the embeddings of every indexed document.
func (s *documentStore) ListIndexedEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.id, e.document_id, e.chunk_index, e.chunk_text, e.namespace, e.vector, e.metadata
		FROM embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE d.status = ?
		ORDER BY e.id
	`, string(domain.StatusIndexed))
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// DeleteEmbeddings removes every embedding of a document.
func (s *documentStore) DeleteEmbeddings(ctx context.Context, documentID int64) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings: %w", err)
	}
	return int(n), nil
}
