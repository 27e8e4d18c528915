// Package driving defines interfaces that external actors (CLI, MCP) use
// to interact with core services. These are the "driving" ports in hexagonal
// architecture terminology - they drive the application.
//
// The four pipeline call shapes map onto these ports:
//
//   - chunk_document: ChunkService.ChunkDocument
//   - embed_chunks:   EmbeddingGenerator.EmbedChunks
//   - index_add:      IngestService.AddToIndex
//   - index_search:   IngestService.Search
//   - rag_query:      RAGService.Query
//
// Implementations of these interfaces live in internal/core/services.
package driving
