package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// setupTestStore creates a new store in a temporary directory for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "recall-test-*")
	require.NoError(t, err)

	// Create store in temp directory
	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func newTestDocument(title, content string, namespace string) *domain.Document {
	return &domain.Document{
		Title:     title,
		Content:   content,
		Namespace: domain.StringPtr(namespace),
		Status:    domain.StatusPending,
		CreatedAt: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func testEmbeddings(n, dim int, namespace string) []domain.Embedding {
	out := make([]domain.Embedding, n)
	for i := range out {
		vec := make([]float32, dim)
		vec[i%dim] = 1
		out[i] = domain.Embedding{
			ChunkIndex: i,
			ChunkText:  "chunk text",
			Vector:     vec,
			Namespace:  domain.StringPtr(namespace),
		}
	}
	return out
}

// ==================== Store Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "recall.db", filepath.Base(store.Path()))
}

func TestNewStore_MigrationsRecorded(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewStore(tempDir)
	require.NoError(t, err)

	doc := newTestDocument("Persisted", "body", "docs")
	require.NoError(t, first.DocumentStore().SaveDocument(context.Background(), doc))
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.DocumentStore().GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Title)
}

// ==================== DocumentStore Tests ====================

func TestDocumentStore_SaveAssignsID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	a := newTestDocument("A", "alpha", "docs")
	b := newTestDocument("B", "beta", "")
	require.NoError(t, docs.SaveDocument(ctx, a))
	require.NoError(t, docs.SaveDocument(ctx, b))

	assert.Greater(t, a.ID, int64(0))
	assert.Greater(t, b.ID, a.ID)
}

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Release notes", "what changed", "docs")
	doc.Attachments = []domain.Attachment{
		&domain.ImageAttachment{URL: "https://example.com/a.png", AltText: "diagram", Width: 640, Height: 480},
		&domain.DocumentAttachment{URL: "https://example.com/manual.pdf", FileName: "manual.pdf", MIMEType: "application/pdf"},
	}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Content, got.Content)
	require.NotNil(t, got.Namespace)
	assert.Equal(t, "docs", *got.Namespace)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, got.UpdatedAt.IsZero())
	require.Len(t, got.Attachments, 2)
	assert.Equal(t, domain.AttachmentImage, got.Attachments[0].Type())
	img, ok := got.Attachments[0].(*domain.ImageAttachment)
	require.True(t, ok)
	assert.Equal(t, 640, img.Width)
}

func TestDocumentStore_SaveNilNamespace(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Untagged", "body", "")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Namespace)
	assert.Empty(t, got.Attachments)
}

func TestDocumentStore_SaveUpdateKeepsCreatedAt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Original", "body", "docs")
	require.NoError(t, docs.SaveDocument(ctx, doc))
	created := doc.CreatedAt

	updated := &domain.Document{
		ID:        doc.ID,
		Title:     "Updated",
		Content:   "new body",
		Status:    domain.StatusPending,
		CreatedAt: created.Add(48 * time.Hour),
	}
	require.NoError(t, docs.SaveDocument(ctx, updated))

	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.Nil(t, got.Namespace)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestDocumentStore_SaveInvalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	assert.ErrorIs(t, docs.SaveDocument(ctx, nil), domain.ErrInvalidInput)

	bad := newTestDocument("Bad", "body", "")
	bad.Status = "archived"
	assert.ErrorIs(t, docs.SaveDocument(ctx, bad), domain.ErrInvalidInput)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetDocument(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, docs.SaveDocument(ctx, newTestDocument(title, "body", "")))
	}
	require.NoError(t, docs.UpdateStatus(ctx, 2, domain.StatusIndexed, ""))

	all, err := docs.ListDocuments(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{all[0].Title, all[1].Title, all[2].Title})

	indexed, err := docs.ListDocuments(ctx, domain.StatusIndexed)
	require.NoError(t, err)
	require.Len(t, indexed, 1)
	assert.Equal(t, "two", indexed[0].Title)

	failed, err := docs.ListDocuments(ctx, domain.StatusFailed)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestDocumentStore_UpdateStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Doc", "body", "")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, domain.StatusFailed, "embedder unavailable"))
	got, err := docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "embedder unavailable", got.ErrorMessage)

	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, domain.StatusIndexed, ""))
	got, err = docs.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestDocumentStore_UpdateStatusErrors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	assert.ErrorIs(t, docs.UpdateStatus(ctx, 42, domain.StatusIndexed, ""), domain.ErrNotFound)
	assert.ErrorIs(t, docs.UpdateStatus(ctx, 1, "bogus", ""), domain.ErrInvalidInput)
}

// ==================== Embedding Tests ====================

func TestDocumentStore_ReplaceEmbeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Doc", "body", "docs")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	first := testEmbeddings(3, 4, "docs")
	first[0].Metadata = map[string]any{"source": "upload"}
	ids, err := docs.ReplaceEmbeddings(ctx, doc.ID, first)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// Not visible until the document is indexed
	embs, err := docs.GetEmbeddingsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, embs)

	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, domain.StatusIndexed, ""))
	embs, err = docs.GetEmbeddingsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, embs, 3)
	for i, e := range embs {
		assert.Equal(t, ids[i], e.ID)
		assert.Equal(t, doc.ID, e.DocumentID)
		assert.Equal(t, i, e.ChunkIndex)
		assert.Equal(t, first[i].Vector, e.Vector)
		require.NotNil(t, e.Namespace)
		assert.Equal(t, "docs", *e.Namespace)
	}
	assert.Equal(t, "upload", embs[0].Metadata["source"])

	// Replacement drops the previous rows
	second := testEmbeddings(2, 4, "docs")
	newIDs, err := docs.ReplaceEmbeddings(ctx, doc.ID, second)
	require.NoError(t, err)
	require.Len(t, newIDs, 2)

	embs, err = docs.GetEmbeddingsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, embs, 2)
	assert.NotContains(t, newIDs, ids[2])
}

func TestDocumentStore_ReplaceEmbeddingsErrors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	_, err := docs.ReplaceEmbeddings(ctx, 77, testEmbeddings(1, 2, ""))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	doc := newTestDocument("Doc", "body", "")
	require.NoError(t, docs.SaveDocument(ctx, doc))
	_, err = docs.ReplaceEmbeddings(ctx, doc.ID, testEmbeddings(2, 2, ""))
	require.NoError(t, err)

	// A failing batch leaves the previous rows intact
	bad := testEmbeddings(2, 2, "")
	bad[1].Vector = nil
	_, err = docs.ReplaceEmbeddings(ctx, doc.ID, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, domain.StatusIndexed, ""))
	embs, err := docs.GetEmbeddingsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, embs, 2)

	foreign := testEmbeddings(1, 2, "")
	foreign[0].DocumentID = doc.ID + 1
	_, err = docs.ReplaceEmbeddings(ctx, doc.ID, foreign)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_ListIndexedEmbeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	indexed := newTestDocument("Indexed", "body", "docs")
	pending := newTestDocument("Pending", "body", "docs")
	require.NoError(t, docs.SaveDocument(ctx, indexed))
	require.NoError(t, docs.SaveDocument(ctx, pending))

	_, err := docs.ReplaceEmbeddings(ctx, indexed.ID, testEmbeddings(2, 3, "docs"))
	require.NoError(t, err)
	_, err = docs.ReplaceEmbeddings(ctx, pending.ID, testEmbeddings(3, 3, "docs"))
	require.NoError(t, err)
	require.NoError(t, docs.UpdateStatus(ctx, indexed.ID, domain.StatusIndexed, ""))

	embs, err := docs.ListIndexedEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, embs, 2)
	for _, e := range embs {
		assert.Equal(t, indexed.ID, e.DocumentID)
	}
}

func TestDocumentStore_DeleteEmbeddings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Doc", "body", "")
	require.NoError(t, docs.SaveDocument(ctx, doc))
	_, err := docs.ReplaceEmbeddings(ctx, doc.ID, testEmbeddings(3, 3, ""))
	require.NoError(t, err)

	n, err := docs.DeleteEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = docs.DeleteEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDocumentStore_DeleteDocumentCascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	doc := newTestDocument("Doc", "body", "")
	require.NoError(t, docs.SaveDocument(ctx, doc))
	_, err := docs.ReplaceEmbeddings(ctx, doc.ID, testEmbeddings(2, 3, ""))
	require.NoError(t, err)

	require.NoError(t, docs.DeleteDocument(ctx, doc.ID))

	_, err = docs.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := docs.DeleteEmbeddings(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDocumentStore_ConcurrentSaves(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	docs := store.DocumentStore()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- docs.SaveDocument(ctx, newTestDocument("concurrent", "body", ""))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	all, err := docs.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

// ==================== Helper Function Tests ====================

func TestFloat32Roundtrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.25, 3.5e-8}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
