package driven

import (
	"context"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a document.
// It maintains a priority-ordered list of normalisers and dispatches
// on file extension, then MIME type.
type NormaliserRegistry interface {
	// Normalise transforms a raw document using the best matching normaliser.
	// Returns domain.ErrUnsupportedFileType when nothing matches.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// Supports reports whether a file with this extension can be normalised.
	Supports(ext string) bool

	// SupportedExtensions returns all extensions that can be normalised.
	SupportedExtensions() []string
}
