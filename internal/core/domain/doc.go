// Package domain defines the core business entities for acqgen.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A retrieved fragment of source material
//   - ExtractedFact / FactSet: Typed data pulled from chunks
//   - DocumentRecord: An immutable audit entry for one generated document
//   - QualityReport: The five-dimension score of a draft
//   - Catalog: The package's document types and their dependency graph
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
