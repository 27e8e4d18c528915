package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var errNoSheets = errors.New("workbook has no sheets")

// Normaliser handles delimited text and Excel workbooks.
type Normaliser struct{}

// New creates a new tabular normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the file extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".csv", ".tsv", ".xlsx"}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/csv",
		"text/tab-separated-values",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 60 // Preferred over plaintext for text/csv
}

// Normalise renders each table as one section. CSV and TSV files hold a
// single table; workbooks produce one section per non-empty sheet.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	name := raw.FileName()
	format := formatOf(raw)

	var (
		frames []*frame
		labels []string
		err    error
	)
	switch format {
	case "xlsx":
		frames, labels, err = readWorkbook(name, raw.Content)
	default:
		var f *frame
		f, err = readDelimited(name, raw.Content, delimiterFor(format))
		if f != nil {
			frames, labels = []*frame{f}, []string{""}
		}
	}
	if err != nil {
		return nil, domain.NewParseError(raw.URI, format, err)
	}

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     extractTitle(raw.URI),
		Kind:      domain.ChunkTypeTabular,
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
	}

	var totalRows int
	for i, f := range frames {
		totalRows += len(f.rows)
		doc.Sections = append(doc.Sections, domain.Section{
			Text:       f.describe(),
			PageNumber: domain.IntPtr(i + 1),
			TotalPages: domain.IntPtr(len(frames)),
			Label:      labels[i],
		})
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = format
	doc.Metadata["rows"] = totalRows
	if len(frames) == 1 {
		doc.Metadata["columns"] = len(frames[0].columns)
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

func formatOf(raw *domain.RawDocument) string {
	switch raw.Extension() {
	case ".xlsx":
		return "xlsx"
	case ".tsv":
		return "tsv"
	case ".csv":
		return "csv"
	}
	switch {
	case strings.Contains(raw.MIMEType, "spreadsheetml"):
		return "xlsx"
	case strings.Contains(raw.MIMEType, "tab-separated"):
		return "tsv"
	}
	return "csv"
}

func delimiterFor(format string) rune {
	if format == "tsv" {
		return '\t'
	}
	return ','
}

// readDelimited parses CSV or TSV. An empty file yields no frame.
func readDelimited(name string, content []byte, comma rune) (*frame, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blankTail(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return newFrame(name, records)
}

// readWorkbook reads every sheet with at least a header row.
func readWorkbook(name string, content []byte) ([]*frame, []string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errNoSheets
	}

	var (
		frames []*frame
		labels []string
	)
	for _, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}

		var records [][]string
		for _, row := range rows {
			if !blankTail(row) {
				records = append(records, row)
			}
		}
		if len(records) == 0 {
			continue
		}

		frameName := name
		if len(sheets) > 1 {
			frameName = fmt.Sprintf("%s [%s]", name, sheet)
		}
		f, err := newFrame(frameName, records)
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		frames = append(frames, f)
		labels = append(labels, sheet)
	}
	return frames, labels, nil
}

// extractTitle extracts a human-readable title from a URI.
func extractTitle(uri string) string {
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
