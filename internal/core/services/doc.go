// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The retrieval core lives here:
//   - SearchService embeds a query, scans the vector index under a
//     namespace filter and re-ranks hits by document freshness.
//   - IndexingCoordinator turns stored documents into index entries.
//   - SnapshotManager persists and restores the whole index.
//   - Scheduler runs periodic snapshot and retry tasks.
//
// Services are pure Go with no CGO or external dependencies.
package services
