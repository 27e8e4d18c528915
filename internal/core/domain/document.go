package domain

import "time"

// Document is the normalised form of a RawDocument: extracted text
// split into sections that chunk independently.
type Document struct {
	// ID is the unique identifier.
	ID string

	// URI is the original file location.
	URI string

	// Title is the display name.
	Title string

	// FileHash is the MD5 hex digest of the raw bytes.
	FileHash string

	// Kind tags every chunk produced from this document.
	Kind ChunkType

	// Sections are the ordered text blocks (pages, sheets or the whole body).
	// Overlap is never applied across section boundaries.
	Sections []Section

	// Metadata contains normaliser-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was normalised.
	CreatedAt time.Time
}

// Section is one independently chunked block of a document.
type Section struct {
	// Text is the extracted content.
	Text string

	// PageNumber is the 1-based page, nil when pages do not apply.
	PageNumber *int

	// TotalPages is the page count of the document, nil when pages do not apply.
	TotalPages *int

	// Label names the section (sheet name, table caption). May be empty.
	Label string
}

// Content concatenates all section texts separated by blank lines.
func (d *Document) Content() string {
	var n int
	for i := range d.Sections {
		n += len(d.Sections[i].Text) + 2
	}
	buf := make([]byte, 0, n)
	for i := range d.Sections {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, d.Sections[i].Text...)
	}
	return string(buf)
}

// IntPtr returns a pointer to n. Used for optional page numbers.
func IntPtr(n int) *int {
	return &n
}

// DocumentRecord tracks an ingested file in the document registry.
type DocumentRecord struct {
	// SourceFile is the path or name the file was ingested from.
	SourceFile string `json:"source_file"`

	// FileHash is the MD5 of the ingested bytes.
	FileHash string `json:"file_hash"`

	// ChunkType is the kind of chunks produced.
	ChunkType ChunkType `json:"chunk_type"`

	// ChunkCount is how many chunks were indexed.
	ChunkCount int `json:"chunk_count"`

	// IngestedAt is when the file was last indexed.
	IngestedAt time.Time `json:"ingested_at"`
}
