package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// Normaliser extracts text sections from one family of file formats.
type Normaliser interface {
	// SupportedExtensions returns the lower-case extensions handled, including the dot.
	SupportedExtensions() []string

	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the document's sections.
	// Unreadable input returns a *domain.ParseError.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Note: Normalisation only produces sections of text.
// Chunking is handled by the Chunker.
type NormaliseResult struct {
	// Document is the normalised document with Sections populated.
	Document domain.Document
}
