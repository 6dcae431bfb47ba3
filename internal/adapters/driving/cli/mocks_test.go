package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

var errMockService = errors.New("mock service failure")

// mockSearchService returns canned results and records the last call.
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

// mockDocumentService serves an in-memory document list.
type mockDocumentService struct {
	documents []domain.Document
	err       error

	added   []driving.NewDocument
	deleted []int64
}

func (m *mockDocumentService) Add(_ context.Context, doc driving.NewDocument) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.added = append(m.added, doc)
	return &domain.Document{ID: int64(100 + len(m.added)), Title: doc.Title, Status: domain.StatusPending}, nil
}

func (m *mockDocumentService) List(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Document
	for _, d := range m.documents {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetContent(ctx context.Context, id int64) (string, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

func (m *mockDocumentService) Delete(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockIndexingService records indexing requests.
type mockIndexingService struct {
	err      error
	failIDs  map[int64]bool
	removed  int
	retried  int
	rebuilt  int
	statuses map[int64]*driving.IndexingStatus

	indexed    []int64
	reindexAll int
}

func (m *mockIndexingService) IndexDocument(_ context.Context, documentID int64) error {
	if m.failIDs[documentID] {
		return &domain.IndexingError{DocumentID: documentID, Stage: domain.StageEmbed, Err: domain.ErrEmbedderUnavailable}
	}
	m.indexed = append(m.indexed, documentID)
	return m.err
}

func (m *mockIndexingService) RemoveDocument(_ context.Context, _ int64) (int, error) {
	return m.removed, m.err
}

func (m *mockIndexingService) ReindexAll(_ context.Context) error {
	m.reindexAll++
	return m.err
}

func (m *mockIndexingService) RetryFailed(_ context.Context) (int, error) {
	return m.retried, m.err
}

func (m *mockIndexingService) Rebuild(_ context.Context) (int, error) {
	return m.rebuilt, m.err
}

func (m *mockIndexingService) Status(_ context.Context, documentID int64) (*driving.IndexingStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if st, ok := m.statuses[documentID]; ok {
		return st, nil
	}
	return nil, domain.ErrNotFound
}

// mockSnapshotService counts saves.
type mockSnapshotService struct {
	saveResult *domain.SnapshotSaveResult
	loadResult *domain.SnapshotLoadResult
	stats      domain.IndexStats
	err        error

	saves       int
	forcedSaves int
}

func (m *mockSnapshotService) Save(_ context.Context) (*domain.SnapshotSaveResult, error) {
	m.forcedSaves++
	return m.result()
}

func (m *mockSnapshotService) SaveIfChanged(_ context.Context) (*domain.SnapshotSaveResult, error) {
	m.saves++
	return m.result()
}

func (m *mockSnapshotService) result() (*domain.SnapshotSaveResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.saveResult != nil {
		return m.saveResult, nil
	}
	return &domain.SnapshotSaveResult{Skipped: true}, nil
}

func (m *mockSnapshotService) Load(_ context.Context) (*domain.SnapshotLoadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.loadResult != nil {
		return m.loadResult, nil
	}
	return &domain.SnapshotLoadResult{Outcome: domain.SnapshotMissing}, nil
}

func (m *mockSnapshotService) Stats() domain.IndexStats {
	return m.stats
}

// mockScheduler serves canned task state and records manual runs.
type mockScheduler struct {
	tasks  []domain.ScheduledTask
	runs   map[string][]domain.TaskResult
	result *domain.TaskResult
	err    error

	ran []string
}

func (m *mockScheduler) Start(_ context.Context) error {
	return nil
}

func (m *mockScheduler) Stop() error {
	return nil
}

func (m *mockScheduler) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, m.err
}

func (m *mockScheduler) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	runs, ok := m.runs[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*domain.TaskResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ran = append(m.ran, taskID)
	if m.result != nil {
		return m.result, nil
	}
	return &domain.TaskResult{TaskID: taskID, Success: true}, nil
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error

	embeddingProvider domain.AIProvider
	embeddingModel    string
	embeddingKey      string
	saved             int
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	m.saved++
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embeddingProvider = provider
	m.embeddingModel = model
	m.embeddingKey = apiKey
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetSnapshotBackend(backend domain.SnapshotBackend, compression domain.Compression) error {
	m.settings.Snapshot.Backend = backend
	m.settings.Snapshot.Compression = compression
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.pingErr
}

// testServices exposes the mocks installed by setupTestServices.
type testServices struct {
	search    *mockSearchService
	documents *mockDocumentService
	indexing  *mockIndexingService
	snapshot  *mockSnapshotService
	settings  *mockSettingsService
	scheduler *mockScheduler
}

var testSvc *testServices

// setupTestServices installs mock services and returns a cleanup function.
func setupTestServices() func() {
	ns := "team-a"
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testSvc = &testServices{
		search: &mockSearchService{
			results: []domain.SearchResult{
				{
					EmbeddingID:     11,
					DocumentID:      1,
					ChunkIndex:      0,
					ChunkText:       "Go channels are typed conduits.",
					Namespace:       &ns,
					RawScore:        0.91,
					FreshnessFactor: 0.95,
					AdjustedScore:   0.8645,
				},
			},
		},
		documents: &mockDocumentService{
			documents: []domain.Document{
				{
					ID:        1,
					Title:     "Concurrency notes",
					Content:   "Go channels are typed conduits.",
					Namespace: &ns,
					Status:    domain.StatusIndexed,
					Attachments: []domain.Attachment{
						domain.ImageAttachment{URL: "https://example.com/diagram.png"},
					},
					CreatedAt: created,
					UpdatedAt: created,
				},
				{
					ID:           2,
					Title:        "Broken",
					Content:      "never embedded",
					Status:       domain.StatusFailed,
					ErrorMessage: "embedder unavailable",
					CreatedAt:    created,
					UpdatedAt:    created,
				},
			},
		},
		indexing: &mockIndexingService{
			removed: 3,
			statuses: map[int64]*driving.IndexingStatus{
				1: {DocumentID: 1, Status: domain.StatusIndexed, Entries: 3},
				2: {DocumentID: 2, Status: domain.StatusFailed, ErrorMessage: "embedder unavailable"},
			},
		},
		snapshot:  &mockSnapshotService{},
		settings:  &mockSettingsService{settings: domain.DefaultAppSettings()},
		scheduler: &mockScheduler{
			tasks: []domain.ScheduledTask{
				{
					ID:        domain.TaskIDRetryFailed,
					Interval:  30 * time.Minute,
					LastRun:   created,
					LastError: "embedder unavailable",
					Failures:  2,
				},
				{
					ID:          domain.TaskIDSnapshotSave,
					Interval:    5 * time.Minute,
					Enabled:     true,
					LastRun:     created,
					NextRun:     created.Add(5 * time.Minute),
					LastSuccess: created,
				},
			},
			runs: map[string][]domain.TaskResult{
				domain.TaskIDSnapshotSave: {
					{
						TaskID:         domain.TaskIDSnapshotSave,
						StartedAt:      created,
						EndedAt:        created.Add(1200 * time.Millisecond),
						Success:        true,
						ItemsProcessed: 12,
						Detail:         "saved 12 entries (4096 bytes) to /tmp/index-snapshot.json",
					},
					{
						TaskID:    domain.TaskIDSnapshotSave,
						StartedAt: created.Add(-5 * time.Minute),
						EndedAt:   created.Add(-5 * time.Minute),
						Error:     "artifact store unavailable",
					},
				},
			},
		},
	}

	SetServices(&Services{
		Search:    testSvc.search,
		Document:  testSvc.documents,
		Indexing:  testSvc.indexing,
		Snapshot:  testSvc.snapshot,
		Settings:  testSvc.settings,
		Scheduler: testSvc.scheduler,
	})
	resetFlags(rootCmd)

	return func() {
		SetServices(nil)
		resetFlags(rootCmd)
		testSvc = nil
	}
}

// resetFlags restores every flag to its default so state does not leak
// between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns combined output.
func execute(stdin string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
