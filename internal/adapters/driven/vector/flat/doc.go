// Package flat provides an exhaustive-scan VectorIndex.
//
// Every query computes the dot product against every admitted entry, so
// search cost is O(N·d). Vectors are expected to be unit-normalised by the
// caller, which makes the dot product equal to cosine similarity.
//
// Entries are held in memory behind a reader-writer lock: searches run
// concurrently and mutations are exclusive. Each document's entry ids are
// tracked in a roaring64 posting list so removal by document does not scan
// the whole index.
package flat
