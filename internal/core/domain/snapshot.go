package domain

import "time"

// Reserved metadata keys used to carry entry fields inside a snapshot.
const (
	SnapshotMetaNamespace  = "namespace"
	SnapshotMetaChunkIndex = "chunkIndex"
)

// IndexSnapshot is the serialised state of the vector index.
// Map keys are decimal entry ids.
type IndexSnapshot struct {
	Vectors   map[string][]float32     `json:"vectors"`
	Metadata  map[string]SnapshotEntry `json:"metadata"`
	Timestamp time.Time                `json:"timestamp"`
}

// SnapshotEntry is the non-vector part of one snapshot entry.
type SnapshotEntry struct {
	Text       string         `json:"text"`
	DocumentID int64          `json:"documentId"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// SnapshotOutcome describes how a snapshot load ended.
type SnapshotOutcome string

// Snapshot load outcomes.
const (
	// SnapshotRestored means the index now holds the snapshot contents.
	SnapshotRestored SnapshotOutcome = "restored"

	// SnapshotMissing means no artifact existed and the index is empty.
	SnapshotMissing SnapshotOutcome = "missing"

	// SnapshotCorrupted means the artifact was unreadable and the index was reset.
	SnapshotCorrupted SnapshotOutcome = "corrupted"
)

// SnapshotLoadResult reports the result of loading a snapshot.
type SnapshotLoadResult struct {
	Outcome SnapshotOutcome

	// Entries is the number of entries in the index after loading.
	Entries int

	// Timestamp is when the restored snapshot was written.
	Timestamp time.Time

	// Err holds the decode failure when Outcome is SnapshotCorrupted.
	Err error
}

// SnapshotSaveResult reports the result of saving a snapshot.
type SnapshotSaveResult struct {
	// Skipped is true when the index had not changed since the last save.
	Skipped bool

	Entries   int
	Bytes     int
	Location  string
	Timestamp time.Time
}

// IndexStats summarises the vector index.
type IndexStats struct {
	Entries    int
	Documents  int
	Dimension  int
	Generation uint64
}
