// Package domain defines the core entities of the ragcore pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: Opaque file bytes submitted for ingestion
//   - Document: Extracted text split into page or sheet sections
//   - Chunk: A retrievable span of text with typed metadata
//   - SearchHit: A ranked match returned by the vector index
//   - QueryResponse: A generated answer with attributed sources
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
