// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - VectorIndex: In-process similarity index over chunk embeddings
//   - EmbeddingService: Turns text into vectors
//   - DocumentStore: Durable documents and embeddings
//   - PostProcessorPipeline: Splits document content into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ArtifactStore: Snapshot persistence. Without it the index is rebuilt
//     from the DocumentStore on every start.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or postprocessor package
package driven
