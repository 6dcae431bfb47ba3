package services

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService for testing.
// Texts listed in vectors get that vector; anything else gets fallback.
type mockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	embedErr error
	batchErr error
	calls    int
	batches  [][]int

	// When set, EmbedBatch signals started and then waits for release.
	started chan struct{}
	release chan struct{}

	// mangle rewrites a batch response before it is returned.
	mangle func([]domain.ChunkVector) []domain.ChunkVector
}

func newMockEmbedder(vectors map[string][]float32) *mockEmbedder {
	return &mockEmbedder{
		vectors:  vectors,
		fallback: []float32{1, 1, 1, 1},
	}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	return append([]float32(nil), m.fallback...)
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkVector, error) {
	if m.started != nil {
		m.started <- struct{}{}
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	idx := make([]int, len(chunks))
	for i, c := range chunks {
		idx[i] = c.Index
	}
	m.batches = append(m.batches, idx)
	if m.batchErr != nil {
		return nil, m.batchErr
	}

	out := make([]domain.ChunkVector, len(chunks))
	// Answer in reverse to exercise reassembly by chunk index.
	for i, c := range chunks {
		out[len(chunks)-1-i] = domain.ChunkVector{Index: c.Index, Vector: m.vectorFor(c.Text)}
	}
	if m.mangle != nil {
		out = m.mangle(out)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.fallback) }
func (m *mockEmbedder) ModelName() string { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// memoryArtifacts implements driven.ArtifactStore for testing.
type memoryArtifacts struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	getErr error
	putErr error
}

func newMemoryArtifacts() *memoryArtifacts {
	return &memoryArtifacts{data: make(map[string][]byte)}
}

func (m *memoryArtifacts) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[name] = append([]byte(nil), data...)
	return nil
}

func (m *memoryArtifacts) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.data[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryArtifacts) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *memoryArtifacts) Location(name string) string {
	return "memory://" + name
}

func (m *memoryArtifacts) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// failingDocStore wraps a DocumentStore and injects errors.
type failingDocStore struct {
	driven.DocumentStore
	replaceErr error
	getEmbErr  error
	statusErr  map[domain.DocumentStatus]error
}

func (f *failingDocStore) ReplaceEmbeddings(ctx context.Context, id int64, e []domain.Embedding) ([]int64, error) {
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	return f.DocumentStore.ReplaceEmbeddings(ctx, id, e)
}

func (f *failingDocStore) GetEmbeddingsByDocument(ctx context.Context, id int64) ([]domain.Embedding, error) {
	if f.getEmbErr != nil {
		return nil, f.getEmbErr
	}
	return f.DocumentStore.GetEmbeddingsByDocument(ctx, id)
}

func (f *failingDocStore) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, msg string) error {
	if err := f.statusErr[status]; err != nil {
		return err
	}
	return f.DocumentStore.UpdateStatus(ctx, id, status, msg)
}

// failingIndex wraps a VectorIndex and fails ReplaceDocument.
type failingIndex struct {
	driven.VectorIndex
	replaceErr error
}

func (f *failingIndex) ReplaceDocument(ctx context.Context, id int64, entries []driven.IndexEntry) (int, error) {
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	return f.VectorIndex.ReplaceDocument(ctx, id, entries)
}

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	runs    map[string][]domain.TaskResult
	saveErr error
	listErr error
	getErr  error
	// listHook runs at the start of every ListTasks call when set.
	listHook func()
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks: make(map[string]*domain.ScheduledTask),
		runs:  make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	if m.listHook != nil {
		m.listHook()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	delete(m.runs, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordRun(_ context.Context, run *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run == nil {
		return domain.ErrInvalidInput
	}
	m.runs[run.TaskID] = append(m.runs[run.TaskID], *run)
	return nil
}

// ListRuns returns the newest runs first.
func (m *mockSchedulerStore) ListRuns(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.runs[taskID]
	out := make([]domain.TaskResult, 0, len(runs))
	for i := len(runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, runs[i])
	}
	return out, nil
}

func (m *mockSchedulerStore) PruneRuns(_ context.Context, _ int) error {
	return nil
}

func (m *mockSchedulerStore) runsFor(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.runs[taskID]...)
}

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingService = (*mockEmbedder)(nil)
	_ driven.ArtifactStore    = (*memoryArtifacts)(nil)
	_ driven.SchedulerStore   = (*mockSchedulerStore)(nil)
)
