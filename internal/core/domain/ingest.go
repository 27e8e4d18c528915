package domain

// IngestOptions configures a single ingestion.
type IngestOptions struct {
	// Chunking overrides the configured chunk size and overlap when non-zero.
	Chunking ChunkingConfig

	// Force re-ingests files whose hash has not changed.
	Force bool

	// Metadata is copied into every chunk's extension map.
	Metadata map[string]any
}

// IngestResult reports the outcome of ingesting one file.
type IngestResult struct {
	// SourceFile is the ingested path or name.
	SourceFile string `json:"source_file"`

	// FileHash is the MD5 of the bytes.
	FileHash string `json:"file_hash"`

	// ChunkIDs are the identifiers added to the index, in chunk order.
	ChunkIDs []string `json:"chunk_ids"`

	// Replaced is how many chunks from an earlier ingestion were removed.
	Replaced int `json:"replaced"`

	// Skipped is true when the file was unchanged and not re-ingested.
	Skipped bool `json:"skipped"`
}
