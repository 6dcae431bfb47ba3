package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure SnapshotManager implements the interface.
var _ driving.SnapshotService = (*SnapshotManager)(nil)

// SnapshotManager writes the whole vector index to an artifact store and
// restores it on startup.
type SnapshotManager struct {
	index     driven.VectorIndex
	artifacts driven.ArtifactStore
	name      string
	now       func() time.Time

	mu       sync.Mutex
	savedGen uint64
	tracked  bool
}

// NewSnapshotManager creates a snapshot manager storing the artifact under name.
func NewSnapshotManager(index driven.VectorIndex, artifacts driven.ArtifactStore, name string) *SnapshotManager {
	if name == "" {
		name = domain.DefaultSnapshotName
	}
	return &SnapshotManager{
		index:     index,
		artifacts: artifacts,
		name:      name,
		now:       time.Now,
	}
}

// Save writes a snapshot of the current index, overwriting the previous one.
func (m *SnapshotManager) Save(ctx context.Context) (*domain.SnapshotSaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx)
}

// SaveIfChanged writes a snapshot only when the index generation moved since
// the last save or load.
func (m *SnapshotManager) SaveIfChanged(ctx context.Context) (*domain.SnapshotSaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracked && m.index.Generation() == m.savedGen {
		logger.Debug("snapshot unchanged, skipping save", "generation", m.savedGen)
		return &domain.SnapshotSaveResult{
			Skipped:  true,
			Entries:  m.index.Len(),
			Location: m.artifacts.Location(m.name),
		}, nil
	}
	return m.saveLocked(ctx)
}

func (m *SnapshotManager) saveLocked(ctx context.Context) (*domain.SnapshotSaveResult, error) {
	// Read the generation before exporting so a concurrent write forces the next save.
	gen := m.index.Generation()

	entries, err := m.index.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export index: %w", err)
	}

	snap := encodeSnapshot(entries, m.now().UTC())
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := m.artifacts.Put(ctx, m.name, data); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	m.savedGen = gen
	m.tracked = true

	result := &domain.SnapshotSaveResult{
		Entries:   len(entries),
		Bytes:     len(data),
		Location:  m.artifacts.Location(m.name),
		Timestamp: snap.Timestamp,
	}
	logger.Info("snapshot saved",
		"entries", result.Entries,
		"bytes", result.Bytes,
		"location", result.Location)
	return result, nil
}

// Load replaces the index with the stored snapshot.
//
// A missing artifact empties the index. An unreadable or invalid artifact is
// logged, the index is emptied and the outcome reports the corruption.
// Only context errors are returned.
func (m *SnapshotManager) Load(ctx context.Context) (*domain.SnapshotLoadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	location := m.artifacts.Location(m.name)

	data, err := m.artifacts.Get(ctx, m.name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		m.index.Reset()
		m.markLoaded()
		logger.Info("no snapshot found, starting empty", "location", location)
		return &domain.SnapshotLoadResult{Outcome: domain.SnapshotMissing}, nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return m.corrupted(location, err), nil
	}

	var snap domain.IndexSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return m.corrupted(location, err), nil
	}
	entries, err := decodeSnapshot(&snap)
	if err != nil {
		return m.corrupted(location, err), nil
	}
	if err := m.index.Restore(ctx, entries); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return m.corrupted(location, err), nil
	}
	m.markLoaded()

	logger.Info("snapshot restored",
		"entries", len(entries),
		"location", location,
		"written_at", snap.Timestamp)
	return &domain.SnapshotLoadResult{
		Outcome:   domain.SnapshotRestored,
		Entries:   len(entries),
		Timestamp: snap.Timestamp,
	}, nil
}

// Stats summarises the current index.
func (m *SnapshotManager) Stats() domain.IndexStats {
	return m.index.Stats()
}

func (m *SnapshotManager) corrupted(location string, cause error) *domain.SnapshotLoadResult {
	logger.Warn("snapshot unreadable, starting empty",
		"location", location,
		"error", cause)
	m.index.Reset()
	m.markLoaded()
	return &domain.SnapshotLoadResult{
		Outcome: domain.SnapshotCorrupted,
		Err:     fmt.Errorf("%w: %w", domain.ErrSnapshotCorrupted, cause),
	}
}

func (m *SnapshotManager) markLoaded() {
	m.savedGen = m.index.Generation()
	m.tracked = true
}

func encodeSnapshot(entries []driven.IndexEntry, at time.Time) *domain.IndexSnapshot {
	snap := &domain.IndexSnapshot{
		Vectors:   make(map[string][]float32, len(entries)),
		Metadata:  make(map[string]domain.SnapshotEntry, len(entries)),
		Timestamp: at,
	}
	for _, e := range entries {
		key := strconv.FormatInt(e.ID, 10)

		meta := make(map[string]any, len(e.Meta.Meta)+2)
		for k, v := range e.Meta.Meta {
			meta[k] = v
		}
		meta[domain.SnapshotMetaChunkIndex] = e.Meta.ChunkIndex
		if e.Meta.Namespace != nil {
			meta[domain.SnapshotMetaNamespace] = *e.Meta.Namespace
		}

		snap.Vectors[key] = e.Vector
		snap.Metadata[key] = domain.SnapshotEntry{
			Text:       e.Meta.Text,
			DocumentID: e.Meta.DocumentID,
			Meta:       meta,
		}
	}
	return snap
}

func decodeSnapshot(snap *domain.IndexSnapshot) ([]driven.IndexEntry, error) {
	if snap.Vectors == nil {
		return nil, errors.New("snapshot has no vectors section")
	}
	if len(snap.Metadata) != len(snap.Vectors) {
		return nil, fmt.Errorf("snapshot has %d vectors but %d metadata entries",
			len(snap.Vectors), len(snap.Metadata))
	}

	entries := make([]driven.IndexEntry, 0, len(snap.Vectors))
	for key, vec := range snap.Vectors {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry id %q: %w", key, err)
		}
		entry, ok := snap.Metadata[key]
		if !ok {
			return nil, fmt.Errorf("entry %d has no metadata", id)
		}

		meta := driven.EntryMetadata{
			DocumentID: entry.DocumentID,
			Text:       entry.Text,
		}
		rest := make(map[string]any, len(entry.Meta))
		for k, v := range entry.Meta {
			switch k {
			case domain.SnapshotMetaNamespace:
				ns, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("entry %d: namespace is %T", id, v)
				}
				meta.Namespace = &ns
			case domain.SnapshotMetaChunkIndex:
				n, ok := v.(float64)
				if !ok || n < 0 || n != math.Trunc(n) {
					return nil, fmt.Errorf("entry %d: invalid chunk index %v", id, v)
				}
				meta.ChunkIndex = int(n)
			default:
				rest[k] = v
			}
		}
		if len(rest) > 0 {
			meta.Meta = rest
		}

		entries = append(entries, driven.IndexEntry{ID: id, Vector: vec, Meta: meta})
	}
	return entries, nil
}
