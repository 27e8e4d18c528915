package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// defaultSearchK is used by index_search when k is not given.
const defaultSearchK = 5

// RAGQueryInput is the input schema for the rag_query tool.
type RAGQueryInput struct {
	Query         string            `json:"query" jsonschema:"the question to answer from indexed documents"`
	TopK          int               `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default from settings)"`
	UseLocalModel *bool             `json:"use_local_model,omitempty" jsonschema:"try the local model before the remote one (default true)"`
	UseCache      *bool             `json:"use_cache,omitempty" jsonschema:"use the response cache (default true)"`
	Filter        map[string]string `json:"filter,omitempty" jsonschema:"metadata equality filter, e.g. {\"chunk_type\": \"pdf_page\"}"`
}

// RAGQueryOutput is the output schema for the rag_query tool.
type RAGQueryOutput struct {
	Answer   string         `json:"answer"`
	Sources  []SourceOutput `json:"sources"`
	Metadata QueryMetadata  `json:"metadata"`
}

// SourceOutput is one retrieved chunk attributed in an answer.
type SourceOutput struct {
	Text            string         `json:"text"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
	Rank            int            `json:"rank"`
}

// QueryMetadata describes how an answer was produced.
type QueryMetadata struct {
	Query           string  `json:"query"`
	RetrievedChunks int     `json:"retrieved_chunks"`
	ProcessingTime  float64 `json:"processing_time"`
	ModelUsed       string  `json:"model_used"`
	Cached          bool    `json:"cached"`
	Degraded        bool    `json:"degraded"`
	CachedAt        string  `json:"cached_at,omitempty"`
}

// IndexSearchInput is the input schema for the index_search tool.
type IndexSearchInput struct {
	Query  string            `json:"query" jsonschema:"text to search for"`
	K      int               `json:"k,omitempty" jsonschema:"maximum number of hits (default 5)"`
	Filter map[string]string `json:"filter,omitempty" jsonschema:"metadata equality filter"`
}

// IndexSearchOutput is the output schema for the index_search tool.
type IndexSearchOutput struct {
	Hits  []HitOutput `json:"hits"`
	Count int         `json:"count"`
}

// HitOutput is a single retrieval hit.
type HitOutput struct {
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"similarity_score"`
	Rank     int            `json:"rank"`
	Metadata map[string]any `json:"metadata"`
}

// ChunkDocumentInput is the input schema for the chunk_document tool.
type ChunkDocumentInput struct {
	Path         string `json:"path" jsonschema:"path of the file to chunk"`
	ChunkSize    int    `json:"chunk_size,omitempty" jsonschema:"target chunk size in estimated tokens (default 500)"`
	ChunkOverlap int    `json:"chunk_overlap,omitempty" jsonschema:"overlap between chunks in estimated tokens (default 50)"`
}

// ChunkDocumentOutput is the output schema for the chunk_document tool.
type ChunkDocumentOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// ChunkOutput is a single chunk.
type ChunkOutput struct {
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// IngestFileInput is the input schema for the ingest_file tool.
type IngestFileInput struct {
	Path  string `json:"path" jsonschema:"path of the file to ingest"`
	Force bool   `json:"force,omitempty" jsonschema:"re-ingest even if the file is unchanged"`
}

// IngestFileOutput is the output schema for the ingest_file tool.
type IngestFileOutput struct {
	SourceFile string   `json:"source_file"`
	FileHash   string   `json:"file_hash"`
	ChunkIDs   []string `json:"chunk_ids"`
	Replaced   int      `json:"replaced"`
	Skipped    bool     `json:"skipped"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_query",
		Description: "Answer a question from the indexed documents, citing the retrieved sources",
	}, s.handleRAGQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_search",
		Description: "Return the indexed chunks most similar to a text",
	}, s.handleIndexSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Chunk, embed and index a file, replacing any earlier version",
	}, s.handleIngestFile)

	if s.ports.Chunk != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chunk_document",
			Description: "Split a file into chunks without indexing it",
		}, s.handleChunkDocument)
	}
}

// handleRAGQuery handles the rag_query tool invocation.
func (s *Server) handleRAGQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RAGQueryInput,
) (*mcp.CallToolResult, RAGQueryOutput, error) {
	opts := domain.DefaultQueryOptions()
	opts.TopK = input.TopK
	if input.UseLocalModel != nil {
		opts.UseLocalModel = *input.UseLocalModel
	}
	if input.UseCache != nil {
		opts.UseCache = *input.UseCache
	}
	opts.Filter = toFilter(input.Filter)

	resp, err := s.ports.RAG.Query(ctx, input.Query, opts)
	if err != nil {
		return nil, RAGQueryOutput{}, err
	}

	output := RAGQueryOutput{
		Answer:  resp.Answer,
		Sources: make([]SourceOutput, len(resp.Sources)),
		Metadata: QueryMetadata{
			Query:           resp.Metadata.Query,
			RetrievedChunks: resp.Metadata.RetrievedChunks,
			ProcessingTime:  resp.Metadata.ProcessingTime,
			ModelUsed:       resp.Metadata.ModelUsed,
			Cached:          resp.Metadata.Cached,
			Degraded:        resp.Metadata.Degraded,
		},
	}
	if resp.Metadata.CachedAt != nil {
		output.Metadata.CachedAt = resp.Metadata.CachedAt.Format(time.RFC3339)
	}
	for i := range resp.Sources {
		meta, err := metadataMap(&resp.Sources[i].Metadata)
		if err != nil {
			return nil, RAGQueryOutput{}, err
		}
		output.Sources[i] = SourceOutput{
			Text:            resp.Sources[i].Text,
			Metadata:        meta,
			SimilarityScore: resp.Sources[i].SimilarityScore,
			Rank:            resp.Sources[i].Rank,
		}
	}

	return nil, output, nil
}

// handleIndexSearch handles the index_search tool invocation.
func (s *Server) handleIndexSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexSearchInput,
) (*mcp.CallToolResult, IndexSearchOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultSearchK
	}

	hits, err := s.ports.Ingest.Search(ctx, input.Query, k, toFilter(input.Filter))
	if err != nil {
		return nil, IndexSearchOutput{}, err
	}

	output := IndexSearchOutput{
		Hits:  make([]HitOutput, len(hits)),
		Count: len(hits),
	}
	for i := range hits {
		meta, err := metadataMap(&hits[i].Metadata)
		if err != nil {
			return nil, IndexSearchOutput{}, err
		}
		output.Hits[i] = HitOutput{
			ChunkID:  hits[i].ChunkID,
			Text:     hits[i].Text,
			Score:    hits[i].Score,
			Rank:     hits[i].Rank,
			Metadata: meta,
		}
	}

	return nil, output, nil
}

// handleChunkDocument handles the chunk_document tool invocation.
func (s *Server) handleChunkDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChunkDocumentInput,
) (*mcp.CallToolResult, ChunkDocumentOutput, error) {
	cfg := domain.DefaultChunkingConfig()
	if input.ChunkSize > 0 {
		cfg.ChunkSize = input.ChunkSize
	}
	if input.ChunkOverlap > 0 {
		cfg.ChunkOverlap = input.ChunkOverlap
	}

	chunks, err := s.ports.Chunk.ChunkFile(ctx, input.Path, cfg)
	if err != nil {
		return nil, ChunkDocumentOutput{}, err
	}

	output := ChunkDocumentOutput{
		Chunks: make([]ChunkOutput, len(chunks)),
		Count:  len(chunks),
	}
	for i := range chunks {
		meta, err := metadataMap(&chunks[i].Metadata)
		if err != nil {
			return nil, ChunkDocumentOutput{}, err
		}
		output.Chunks[i] = ChunkOutput{
			ChunkID:  chunks[i].ID,
			Text:     chunks[i].Text,
			Metadata: meta,
		}
	}

	return nil, output, nil
}

// handleIngestFile handles the ingest_file tool invocation.
func (s *Server) handleIngestFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestFileInput,
) (*mcp.CallToolResult, IngestFileOutput, error) {
	res, err := s.ports.Ingest.IngestFile(ctx, input.Path, domain.IngestOptions{Force: input.Force})
	if err != nil {
		return nil, IngestFileOutput{}, err
	}

	ids := res.ChunkIDs
	if ids == nil {
		ids = []string{}
	}
	return nil, IngestFileOutput{
		SourceFile: res.SourceFile,
		FileHash:   res.FileHash,
		ChunkIDs:   ids,
		Replaced:   res.Replaced,
		Skipped:    res.Skipped,
	}, nil
}

func toFilter(in map[string]string) domain.MetadataFilter {
	if len(in) == 0 {
		return nil
	}
	f := make(domain.MetadataFilter, len(in))
	for k, v := range in {
		f[k] = v
	}
	return f
}

// metadataMap flattens chunk metadata to its JSON object form.
func metadataMap(m *domain.ChunkMetadata) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return out, nil
}
