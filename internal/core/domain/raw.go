package domain

import (
	"path/filepath"
	"strings"
)

// RawDocument represents opaque file bytes submitted for ingestion.
// It is the input to normalisation.
type RawDocument struct {
	// URI is the original location (file path or upload name).
	URI string

	// MIMEType is the declared or sniffed content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	// Copied into every chunk's extension map.
	Metadata map[string]any
}

// Extension returns the lower-cased file extension of the URI, including the dot.
func (r *RawDocument) Extension() string {
	return strings.ToLower(filepath.Ext(r.URI))
}

// FileName returns the base name of the URI.
func (r *RawDocument) FileName() string {
	return filepath.Base(r.URI)
}
