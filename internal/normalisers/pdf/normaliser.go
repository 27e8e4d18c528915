package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var errNotPDF = errors.New("missing %PDF header")

// Normaliser handles PDF documents by shelling out to pdftotext.
type Normaliser struct {
	runner CommandRunner
}

// New creates a PDF normaliser backed by the system pdftotext.
func New() *Normaliser {
	return &Normaliser{runner: execRunner{}}
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(runner CommandRunner) *Normaliser {
	return &Normaliser{runner: runner}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts one section per non-empty page. Table-like rows on a
// page are repeated in a trailing "Tables:" block with cells joined by " | ".
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	if !bytes.HasPrefix(bytes.TrimLeft(raw.Content, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, domain.NewParseError(raw.URI, "pdf", errNotPDF)
	}

	text, err := n.extract(ctx, raw.Content)
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, fmt.Errorf("%w\n\n%s", err, InstallInstructions())
		}
		return nil, domain.NewParseError(raw.URI, "pdf", err)
	}

	pages := splitPages(text)
	total := len(pages)

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     extractTitle(text, raw.URI),
		Kind:      domain.ChunkTypePDFPage,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
	}

	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		doc.Sections = append(doc.Sections, domain.Section{
			Text:       renderPage(page),
			PageNumber: domain.IntPtr(i + 1),
			TotalPages: domain.IntPtr(total),
		})
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "pdf"
	doc.Metadata["total_pages"] = total

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extract writes the bytes to a temporary file and runs pdftotext on it.
func (n *Normaliser) extract(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ragcore-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := n.runner.Run(ctx, toolName, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return "", err
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(out), nil
}

// splitPages splits pdftotext output on form feeds. The trailing form
// feed after the last page does not start a new page.
func splitPages(text string) []string {
	text = strings.TrimSuffix(text, "\f")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\f")
}

var cellGap = regexp.MustCompile(`\S(?:\s{2,})\S`)
var cellSplit = regexp.MustCompile(`\s{2,}`)

// tableCells returns the cells of a layout line that looks like a table
// row: two or more cells separated by runs of at least two spaces.
func tableCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if !cellGap.MatchString(trimmed) {
		return nil
	}
	cells := cellSplit.Split(trimmed, -1)
	if len(cells) < 2 {
		return nil
	}
	return cells
}

// renderPage appends detected tables to the page text. A table needs at
// least two consecutive table-like rows.
func renderPage(page string) string {
	var tables [][]string
	var current []string

	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}

	for _, line := range strings.Split(page, "\n") {
		cells := tableCells(line)
		if cells == nil {
			flush()
			continue
		}
		current = append(current, strings.Join(cells, " | "))
	}
	flush()

	text := strings.TrimSpace(page)
	if len(tables) == 0 {
		return text
	}

	formatted := make([]string, len(tables))
	for i, rows := range tables {
		formatted[i] = "Table:\n" + strings.Join(rows, "\n")
	}
	return text + "\n\nTables:\n" + strings.Join(formatted, "\n\n")
}

// extractTitle uses the first short non-empty line, falling back to the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\f", ""))
		if line == "" || len(line) > 200 {
			continue
		}
		return cellSplit.ReplaceAllString(line, " ")
	}

	filename := filepath.Base(uri)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
