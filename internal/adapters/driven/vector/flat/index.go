package flat

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

// cancelStride is how many entries are scored between context checks.
const cancelStride = 1024

type entry struct {
	id     int64
	vector []float32
	meta   driven.EntryMetadata
}

// Index is an in-memory exhaustive-scan vector index.
type Index struct {
	mu sync.RWMutex

	// fixedDim is the configured dimension. Zero means learn from the first entry.
	fixedDim  int
	dimension int

	entries map[int64]*entry
	byDoc   map[int64]*roaring64.Bitmap

	generation uint64
	closed     bool
}

// Option configures the index.
type Option func(*Index)

// WithDimension fixes the vector dimension up front.
func WithDimension(dim int) Option {
	return func(ix *Index) {
		if dim > 0 {
			ix.fixedDim = dim
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		entries: make(map[int64]*entry),
		byDoc:   make(map[int64]*roaring64.Bitmap),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.dimension = ix.fixedDim
	return ix
}

// Upsert inserts or replaces a single entry.
func (ix *Index) Upsert(ctx context.Context, id int64, vector []float32, meta driven.EntryMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return domain.ErrIndexClosed
	}
	if err := ix.checkDimLocked(len(vector)); err != nil {
		return err
	}

	ix.putLocked(id, vector, meta)
	ix.generation++
	return nil
}

// ReplaceDocument removes every entry of documentID and inserts entries in
// one critical section. Either all entries are inserted or none are.
func (ix *Index) ReplaceDocument(ctx context.Context, documentID int64, entries []driven.IndexEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return 0, domain.ErrIndexClosed
	}

	dim := ix.dimension
	for _, e := range entries {
		if e.Meta.DocumentID != documentID {
			return 0, fmt.Errorf("%w: entry %d belongs to document %d, not %d",
				domain.ErrInvalidInput, e.ID, e.Meta.DocumentID, documentID)
		}
		if len(e.Vector) == 0 {
			return 0, fmt.Errorf("%w: entry %d has an empty vector", domain.ErrInvalidInput, e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return 0, fmt.Errorf("%w: entry %d has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}

	removed := ix.removeDocLocked(documentID)
	if len(entries) > 0 && ix.dimension == 0 {
		ix.dimension = dim
	}
	for _, e := range entries {
		ix.putLocked(e.ID, e.Vector, e.Meta)
	}
	if removed > 0 || len(entries) > 0 {
		ix.generation++
	}
	return removed, nil
}

// RemoveByDocument deletes every entry of documentID.
func (ix *Index) RemoveByDocument(ctx context.Context, documentID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return 0, domain.ErrIndexClosed
	}

	removed := ix.removeDocLocked(documentID)
	if removed > 0 {
		ix.generation++
	}
	return removed, nil
}

// Search scans every entry admitted by filter and returns the k best.
func (ix *Index) Search(ctx context.Context, query []float32, k int, filter driven.EntryFilter) ([]driven.VectorHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, domain.ErrIndexClosed
	}
	if k <= 0 || len(ix.entries) == 0 {
		return []driven.VectorHit{}, nil
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), ix.dimension)
	}

	top := make(hitHeap, 0, min(k, len(ix.entries)))
	scanned := 0
	for _, e := range ix.entries {
		scanned++
		if scanned%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if filter != nil && !filter(e.id, &e.meta) {
			continue
		}

		h := scored{entry: e, score: dot(query, e.vector)}
		if len(top) < k {
			heap.Push(&top, h)
			continue
		}
		if better(h, top[0]) {
			top[0] = h
			heap.Fix(&top, 0)
		}
	}

	sort.Slice(top, func(i, j int) bool { return better(top[i], top[j]) })

	hits := make([]driven.VectorHit, len(top))
	for i, h := range top {
		hits[i] = driven.VectorHit{
			ID:    h.entry.id,
			Score: h.score,
			Meta:  copyMeta(h.entry.meta),
		}
	}
	return hits, nil
}

// Export returns a deep copy of every entry ordered by id.
// Writers are blocked for the duration of the copy.
func (ix *Index) Export(ctx context.Context) ([]driven.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return nil, domain.ErrIndexClosed
	}

	out := make([]driven.IndexEntry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, driven.IndexEntry{
			ID:     e.id,
			Vector: append([]float32(nil), e.vector...),
			Meta:   copyMeta(e.meta),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Restore replaces the index contents. On error the index is unchanged.
func (ix *Index) Restore(ctx context.Context, entries []driven.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dim := ix.fixedDim
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %d has an empty vector", domain.ErrInvalidInput, e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return domain.ErrIndexClosed
	}

	ix.entries = make(map[int64]*entry, len(entries))
	ix.byDoc = make(map[int64]*roaring64.Bitmap)
	ix.dimension = dim
	for _, e := range entries {
		ix.putLocked(e.ID, e.Vector, e.Meta)
	}
	ix.generation++
	return nil
}

// Reset empties the index. A configured dimension is kept.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = make(map[int64]*entry)
	ix.byDoc = make(map[int64]*roaring64.Bitmap)
	ix.dimension = ix.fixedDim
	ix.generation++
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Stats summarises the index.
func (ix *Index) Stats() domain.IndexStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return domain.IndexStats{
		Entries:    len(ix.entries),
		Documents:  len(ix.byDoc),
		Dimension:  ix.dimension,
		Generation: ix.generation,
	}
}

// Generation returns the mutation counter.
func (ix *Index) Generation() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.generation
}

// Close releases the entries. Further calls fail with domain.ErrIndexClosed.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	ix.entries = nil
	ix.byDoc = nil
	return nil
}

func (ix *Index) checkDimLocked(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	if ix.dimension == 0 {
		ix.dimension = n
		return nil
	}
	if n != ix.dimension {
		return fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, n, ix.dimension)
	}
	return nil
}

func (ix *Index) putLocked(id int64, vector []float32, meta driven.EntryMetadata) {
	if old, ok := ix.entries[id]; ok && old.meta.DocumentID != meta.DocumentID {
		ix.unlinkLocked(old.meta.DocumentID, id)
	}

	ix.entries[id] = &entry{
		id:     id,
		vector: append([]float32(nil), vector...),
		meta:   copyMeta(meta),
	}

	bm, ok := ix.byDoc[meta.DocumentID]
	if !ok {
		bm = roaring64.New()
		ix.byDoc[meta.DocumentID] = bm
	}
	bm.Add(uint64(id))
}

func (ix *Index) removeDocLocked(documentID int64) int {
	bm, ok := ix.byDoc[documentID]
	if !ok {
		return 0
	}
	removed := 0
	it := bm.Iterator()
	for it.HasNext() {
		id := int64(it.Next())
		if _, ok := ix.entries[id]; ok {
			delete(ix.entries, id)
			removed++
		}
	}
	delete(ix.byDoc, documentID)
	return removed
}

func (ix *Index) unlinkLocked(documentID, id int64) {
	bm, ok := ix.byDoc[documentID]
	if !ok {
		return
	}
	bm.Remove(uint64(id))
	if bm.IsEmpty() {
		delete(ix.byDoc, documentID)
	}
}

// dot accumulates in float64 so scores do not depend on summation precision.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func copyMeta(m driven.EntryMetadata) driven.EntryMetadata {
	out := m
	if m.Namespace != nil {
		ns := *m.Namespace
		out.Namespace = &ns
	}
	if m.Meta != nil {
		out.Meta = make(map[string]any, len(m.Meta))
		for k, v := range m.Meta {
			out.Meta[k] = v
		}
	}
	return out
}
