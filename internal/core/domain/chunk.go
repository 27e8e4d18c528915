package domain

import (
	"fmt"
	"time"
)

// ChunkType tags the extraction path a chunk came from.
type ChunkType string

// Available chunk types.
const (
	// ChunkTypePDFPage is text extracted from a single PDF page.
	ChunkTypePDFPage ChunkType = "pdf_page"

	// ChunkTypeDOCXDocument is text extracted from a Word document body.
	ChunkTypeDOCXDocument ChunkType = "docx_document"

	// ChunkTypeTabular is a descriptive rendering of CSV or spreadsheet data.
	ChunkTypeTabular ChunkType = "tabular_row_group"

	// ChunkTypeText is plain text, markdown or HTML.
	ChunkTypeText ChunkType = "text"
)

// IsValid returns true if the chunk type is recognised.
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkTypePDFPage, ChunkTypeDOCXDocument, ChunkTypeTabular, ChunkTypeText:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t ChunkType) String() string {
	return string(t)
}

// MetadataSchemaVersion is bumped whenever ChunkMetadata gains or changes a named field.
const MetadataSchemaVersion = 1

// ChunkMetadata is the typed metadata stored with every chunk.
// Named fields are filterable; Extra carries forward-compatible extensions.
type ChunkMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	SourceFile    string    `json:"source_file"`
	FileName      string    `json:"file_name"`
	FileHash      string    `json:"file_hash"`
	PageNumber    *int      `json:"page_number,omitempty"`
	TotalPages    *int      `json:"total_pages,omitempty"`
	ChunkIndex    int       `json:"chunk_index"`
	ChunkType     ChunkType `json:"chunk_type"`
	TokenCount    int       `json:"token_count"`
	CharCount     int       `json:"char_count"`
	CreatedAt     time.Time `json:"created_at"`
	ChunkSize     int       `json:"chunk_size"`
	ChunkOverlap  int       `json:"chunk_overlap"`

	// Extra holds keys outside the named schema (section label, overlap, caller metadata).
	Extra map[string]any `json:"extra,omitempty"`
}

// Field returns the value of a metadata field by its snake_case name.
// Unknown names are looked up in Extra.
func (m *ChunkMetadata) Field(name string) (any, bool) {
	switch name {
	case "schema_version":
		return m.SchemaVersion, true
	case "source_file":
		return m.SourceFile, true
	case "file_name":
		return m.FileName, true
	case "file_hash":
		return m.FileHash, true
	case "page_number":
		if m.PageNumber == nil {
			return nil, false
		}
		return *m.PageNumber, true
	case "total_pages":
		if m.TotalPages == nil {
			return nil, false
		}
		return *m.TotalPages, true
	case "chunk_index":
		return m.ChunkIndex, true
	case "chunk_type":
		return string(m.ChunkType), true
	case "token_count":
		return m.TokenCount, true
	case "char_count":
		return m.CharCount, true
	case "chunk_size":
		return m.ChunkSize, true
	case "chunk_overlap":
		return m.ChunkOverlap, true
	}
	v, ok := m.Extra[name]
	return v, ok
}

// Clone returns a deep copy with its own Extra map and page pointers.
func (m ChunkMetadata) Clone() ChunkMetadata {
	out := m
	if m.PageNumber != nil {
		out.PageNumber = IntPtr(*m.PageNumber)
	}
	if m.TotalPages != nil {
		out.TotalPages = IntPtr(*m.TotalPages)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Well-known Extra keys set by the chunker.
const (
	ExtraOverlapBytes = "overlap_bytes"
	ExtraSection      = "section"
)

// Chunk is a contiguous span of extracted text ready for embedding.
// Chunks are immutable once produced.
type Chunk struct {
	// ID is the unique identifier, used as the chunk_id in the vector index.
	ID string `json:"chunk_id"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Metadata describes where the text came from.
	Metadata ChunkMetadata `json:"metadata"`
}

// OverlapBytes returns how many leading bytes of Text repeat the end of the previous chunk.
func (c *Chunk) OverlapBytes() int {
	v, ok := c.Metadata.Extra[ExtraOverlapBytes]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Default chunking configuration, in estimated tokens.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	// CharsPerToken is the heuristic used for token estimates.
	CharsPerToken = 4
)

// ChunkingConfig controls how text is split into chunks.
type ChunkingConfig struct {
	// ChunkSize is the maximum chunk length in estimated tokens.
	ChunkSize int `json:"chunk_size"`

	// ChunkOverlap is the maximum overlap between adjacent chunks in estimated tokens.
	ChunkOverlap int `json:"chunk_overlap"`
}

// DefaultChunkingConfig returns 500/50.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

// Validate reports configs that cannot produce chunks.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidInput, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidInput, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// EstimateTokens returns the estimated token count for text (~4 characters per token).
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return (n + CharsPerToken - 1) / CharsPerToken
}
