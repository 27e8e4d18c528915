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
//   - Normaliser: Extracts text sections from one file format
//   - NormaliserRegistry: Selects the normaliser for a file
//   - Chunker: Splits normalised sections into overlapping chunks
//   - EmbeddingService: Maps text to vectors (built-in, Ollama or OpenAI)
//   - VectorIndex: Stores vectors with metadata and answers nearest-neighbour queries
//   - EmbeddingCache: Persistent key to vector memoisation
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without any, queries return retrieval-only responses.
//   - ResponseCache: Query to answer memoisation. Without it, every query generates.
//   - DocumentStore: Registry of ingested files. Without it, unchanged files are re-ingested.
//   - PromptStore: Overridable prompt templates. Without it, built-in templates are used.
//   - Metrics: Counters and histograms. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
