package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const documentPart = "word/document.xml"

var errNoDocumentPart = errors.New("missing " + documentPart)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".docx"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise converts a DOCX document to a single section holding every
// paragraph and table in body order. DOCX has no reliable page model, so
// the section is page 1 of 1.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, domain.NewParseError(raw.URI, "docx", err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, domain.NewParseError(raw.URI, "docx", err)
	}

	content, err := parseDocumentXML(body)
	if err != nil {
		return nil, domain.NewParseError(raw.URI, "docx", err)
	}

	props := readCoreProperties(reader)

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     titleOrFilename(props.Title, raw.URI),
		Kind:      domain.ChunkTypeDOCXDocument,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
	}

	if content != "" {
		doc.Sections = []domain.Section{{
			Text:       content,
			PageNumber: domain.IntPtr(1),
			TotalPages: domain.IntPtr(1),
		}}
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "docx"
	if author := strings.TrimSpace(props.Creator); author != "" && doc.Metadata["author"] == nil {
		doc.Metadata["author"] = author
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	if name == documentPart {
		return nil, errNoDocumentPart
	}
	return nil, fmt.Errorf("missing %s", name)
}

// node is a minimal element tree of the WordprocessingML body.
// Only text inside w:t is kept.
type node struct {
	name     string
	text     string
	children []*node
}

func buildTree(content []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	root := &node{}
	stack := []*node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			child := &node{name: t.Name.Local}
			top.children = append(top.children, child)
			stack = append(stack, child)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if top.name == "t" {
				top.text += string(t)
			}
		}
	}
	return root, nil
}

func (n *node) find(name string) *node {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// parseDocumentXML renders paragraphs and tables in body order, joined by
// blank lines. Tables render as a "Table:" line followed by one
// "c1 | c2" line per row.
func parseDocumentXML(content []byte) (string, error) {
	root, err := buildTree(content)
	if err != nil {
		return "", err
	}

	body := root.find("body")
	if body == nil {
		return "", nil
	}

	var blocks []string
	renderBlocks(body, &blocks)
	return strings.Join(blocks, "\n\n"), nil
}

func renderBlocks(container *node, blocks *[]string) {
	for _, child := range container.children {
		switch child.name {
		case "p":
			if text := strings.TrimSpace(paragraphText(child)); text != "" {
				*blocks = append(*blocks, text)
			}
		case "tbl":
			if table := renderTable(child); table != "" {
				*blocks = append(*blocks, table)
			}
		case "sdt", "sdtContent", "customXml", "ins":
			renderBlocks(child, blocks)
		}
	}
}

// paragraphText concatenates run text. Deleted revisions and field
// instructions are skipped.
func paragraphText(p *node) string {
	var b strings.Builder
	var walk func(n *node)
	walk = func(n *node) {
		switch n.name {
		case "t":
			b.WriteString(n.text)
			return
		case "tab":
			b.WriteByte('\t')
			return
		case "br", "cr":
			b.WriteByte('\n')
			return
		case "del", "instrText", "delText":
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(p)
	return b.String()
}

func renderTable(tbl *node) string {
	var rows []string
	for _, tr := range tbl.children {
		if tr.name != "tr" {
			continue
		}
		var cells []string
		hasText := false
		for _, tc := range tr.children {
			if tc.name != "tc" {
				continue
			}
			text := cellText(tc)
			if text != "" {
				hasText = true
			}
			cells = append(cells, text)
		}
		if hasText {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	if len(rows) == 0 {
		return ""
	}
	return "Table:\n" + strings.Join(rows, "\n")
}

// cellText joins the paragraphs of a cell, including nested tables,
// with single spaces.
func cellText(tc *node) string {
	var parts []string
	var walk func(n *node)
	walk = func(n *node) {
		if n.name == "p" {
			if text := strings.Join(strings.Fields(paragraphText(n)), " "); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(tc)
	return strings.Join(parts, " ")
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

func readCoreProperties(reader *zip.Reader) coreXML {
	var core coreXML
	content, err := readPart(reader, "docProps/core.xml")
	if err != nil {
		return core
	}
	_ = xml.Unmarshal(content, &core)
	return core
}

// titleOrFilename returns the document title or a name derived from the URI.
func titleOrFilename(title, uri string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
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
