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
//   - MetadataStore: Append-only registry of committed documents (SQLite or memory)
//   - Renderer: Populates a document template from a fact set
//   - ArtifactStore: Persists rendered documents
//   - ConfigStore: Application configuration
//   - CatalogSource: The package's document catalogue
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Retriever: Source material lookup. Without it every document extracts fallback facts.
//   - LLMService: Structured extraction and refinement. Without it only the
//     deterministic extraction stages run and drafts are not refined.
//   - EmbeddingService: Query embeddings for the pgvector retriever.
//   - ProgressSink: Progress reporting.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
