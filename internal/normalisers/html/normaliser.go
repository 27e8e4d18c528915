package html

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to a single text section.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, domain.NewParseError(raw.URI, "html", err)
	}

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     extractHTMLTitle(dom, raw.URI),
		Kind:      domain.ChunkTypeText,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
	}

	if text := extractText(dom); text != "" {
		doc.Sections = []domain.Section{{Text: text}}
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "html"
	if lang, ok := dom.Find("html").Attr("lang"); ok && lang != "" {
		doc.Metadata["lang"] = lang
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

var (
	// Elements whose content is never visible text.
	skipElements = map[string]bool{
		"head": true, "script": true, "style": true, "noscript": true,
		"svg": true, "template": true, "iframe": true, "#comment": true,
	}

	// Elements rendered on their own lines.
	blockElements = map[string]bool{
		"p": true, "div": true, "hr": true, "li": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"blockquote": true, "pre": true, "table": true, "section": true,
		"article": true, "header": true, "footer": true, "nav": true,
		"main": true, "aside": true, "ul": true, "ol": true, "dl": true,
		"dt": true, "dd": true, "figure": true, "figcaption": true,
		"caption": true, "form": true, "address": true,
	}

	multiSpaces = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// extractHTMLTitle reads <title>, then the first <h1>, then the filename.
func extractHTMLTitle(dom *goquery.Document, uri string) string {
	if title := strings.TrimSpace(dom.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := strings.TrimSpace(dom.Find("h1").First().Text()); h1 != "" {
		return multiSpaces.ReplaceAllString(h1, " ")
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

// extractText renders the body as lines of text. Table cells within a
// row are joined with " | ".
func extractText(dom *goquery.Document) string {
	root := dom.Find("body")
	if root.Length() == 0 {
		root = dom.Selection
	}

	var b strings.Builder
	render(root, &b)

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		line = strings.Trim(line, "|")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func render(sel *goquery.Selection, b *strings.Builder) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(strings.ReplaceAll(c.Text(), "\n", " "))
		case skipElements[name]:
		case name == "br":
			b.WriteByte('\n')
		case name == "td" || name == "th":
			if c.PrevFiltered("td, th").Length() > 0 {
				b.WriteString(" | ")
			}
			render(c, b)
		case name == "pre":
			b.WriteByte('\n')
			b.WriteString(c.Text())
			b.WriteByte('\n')
		case blockElements[name]:
			b.WriteByte('\n')
			render(c, b)
			b.WriteByte('\n')
		default:
			render(c, b)
		}
	})
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
