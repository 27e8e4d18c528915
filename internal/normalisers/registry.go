package normalisers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/normalisers/docx"
	"github.com/custodia-labs/ragcore/internal/normalisers/html"
	"github.com/custodia-labs/ragcore/internal/normalisers/markdown"
	"github.com/custodia-labs/ragcore/internal/normalisers/pdf"
	"github.com/custodia-labs/ragcore/internal/normalisers/plaintext"
	"github.com/custodia-labs/ragcore/internal/normalisers/tabular"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches documents to the highest-priority normaliser that
// claims their extension, falling back to the declared MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry registers every built-in normaliser.
// A nil runner uses the system pdftotext.
func NewDefaultRegistry(pdfRunner pdf.CommandRunner) *Registry {
	r := NewRegistry()
	if pdfRunner == nil {
		r.Register(pdf.New())
	} else {
		r.Register(pdf.NewWithRunner(pdfRunner))
	}
	r.Register(docx.New())
	r.Register(tabular.New())
	r.Register(html.New())
	r.Register(markdown.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise transforms a raw document using the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n := r.lookup(raw.Extension(), raw.MIMEType)
	if n == nil {
		ext := raw.Extension()
		if ext == "" {
			ext = raw.MIMEType
		}
		return nil, fmt.Errorf("%w: %q (%s)", domain.ErrUnsupportedFileType, raw.FileName(), ext)
	}
	return n.Normalise(ctx, raw)
}

// Supports reports whether a file with this extension can be normalised.
func (r *Registry) Supports(ext string) bool {
	return r.lookup(strings.ToLower(ext), "") != nil
}

// SupportedExtensions returns all extensions that can be normalised, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, n := range r.normalisers {
		for _, ext := range n.SupportedExtensions() {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	sort.Strings(out)
	return out
}

// lookup prefers an extension match. MIME types are only consulted when
// the file has no extension, so "report.exe" declared as text/plain is
// still rejected.
func (r *Registry) lookup(ext, mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ext != "" {
		for _, n := range r.normalisers {
			if contains(n.SupportedExtensions(), ext) {
				return n
			}
		}
		return nil
	}

	if mimeType == "" {
		return nil
	}
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	for _, n := range r.normalisers {
		if contains(n.SupportedMIMETypes(), mimeType) {
			return n
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
