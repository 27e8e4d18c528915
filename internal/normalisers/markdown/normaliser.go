package markdown

import (
	"context"
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

var (
	codeFence    = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	strong       = regexp.MustCompile(`(\*\*|__)([^*_\n]+)(\*\*|__)`)
	italic       = regexp.MustCompile(`\*([^*\n]+)\*`)
	blockquote   = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr           = regexp.MustCompile(`(?m)^[ \t]*[-*_]{3,}[ \t]*$`)
	listMarkers  = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	numberedList = regexp.MustCompile(`(?m)^([ \t]*)\d+\.[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	sectionStart = regexp.MustCompile(`(?m)^#{1,2}[ \t]+(.+)$`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".md", ".markdown"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts a markdown document to plain text sections.
// Each level one or two heading starts a new section labelled with the
// heading text. Content before the first heading forms an unlabelled section.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     extractMarkdownTitle(rawContent, raw.URI),
		Kind:      domain.ChunkTypeText,
		Sections:  splitSections(rawContent),
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "markdown"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// splitSections cuts the source at level one and two headings, strips
// formatting and drops sections that end up empty.
func splitSections(content string) []domain.Section {
	// Headings inside fenced code are not section breaks.
	masked := codeFence.ReplaceAllStringFunc(content, func(m string) string {
		return strings.Repeat(" ", len(m))
	})

	locs := sectionStart.FindAllStringSubmatchIndex(masked, -1)

	var sections []domain.Section
	add := func(label, body string) {
		text := stripMarkdown(body)
		if text == "" {
			return
		}
		sections = append(sections, domain.Section{Text: text, Label: label})
	}

	if len(locs) == 0 {
		add("", content)
		return sections
	}

	add("", content[:locs[0][0]])
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		label := strings.TrimSpace(stripInline(content[loc[2]:loc[3]]))
		add(label, content[loc[0]:end])
	}
	return sections
}

// extractMarkdownTitle extracts a title from the first H1 or falls back to filename.
func extractMarkdownTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(stripInline(strings.TrimPrefix(line, "#")))
		}
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

// stripMarkdown removes common markdown formatting for plain text content.
// Code block bodies are kept as text; only the fences go.
func stripMarkdown(content string) string {
	content = codeFence.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "$1")
	content = numberedList.ReplaceAllString(content, "$1")
	content = stripInline(content)
	content = multiNewline.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func stripInline(s string) string {
	s = images.ReplaceAllString(s, "$1")
	s = links.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = strong.ReplaceAllString(s, "$2")
	s = italic.ReplaceAllString(s, "$1")
	return s
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
