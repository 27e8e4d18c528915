package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func pdfDoc(uri string) *domain.RawDocument {
	return &domain.RawDocument{
		URI:      uri,
		MIMEType: "application/pdf",
		Content:  []byte("%PDF-1.4 fake pdf content"),
	}
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, execRunner{}, normaliser.runner)
}

func TestSupportedTypes(t *testing.T) {
	normaliser := New()

	assert.Equal(t, []string{".pdf"}, normaliser.SupportedExtensions())
	assert.Equal(t, []string{"application/pdf"}, normaliser.SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	normaliser := New()
	assert.Equal(t, 50, normaliser.Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	normaliser := New()

	result, err := normaliser.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_NotAPDF(t *testing.T) {
	runner := &mockRunner{}
	normaliser := NewWithRunner(runner)

	raw := &domain.RawDocument{
		URI:     "/path/to/fake.pdf",
		Content: []byte("this is not a pdf"),
	}

	_, err := normaliser.Normalise(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.ErrorIs(t, err, errNotPDF)
	assert.Empty(t, runner.name, "runner must not be invoked")
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		uri      string
		expected string
	}{
		{
			name:     "first line as title",
			content:  "Document Title\n\nSome content here.",
			uri:      "/doc.pdf",
			expected: "Document Title",
		},
		{
			name:     "skip empty lines",
			content:  "\n\n\nActual Title\nContent",
			uri:      "/doc.pdf",
			expected: "Actual Title",
		},
		{
			name:     "layout gaps collapsed",
			content:  "   Annual      Report   \nContent",
			uri:      "/doc.pdf",
			expected: "Annual Report",
		},
		{
			name:     "fallback to filename",
			content:  "",
			uri:      "/path/to/my_document.pdf",
			expected: "my document",
		},
		{
			name:     "skip very long first line",
			content:  string(make([]byte, 250)) + "\nShort Title\nContent",
			uri:      "/doc.pdf",
			expected: "Short Title",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractTitle(tc.content, tc.uri))
		})
	}
}

func TestSplitPages(t *testing.T) {
	assert.Nil(t, splitPages(""))
	assert.Equal(t, []string{"one"}, splitPages("one\f"))
	assert.Equal(t, []string{"one", "", "three"}, splitPages("one\f\fthree\f"))
}

func TestRenderPage_Tables(t *testing.T) {
	page := "Sales summary for the quarter.\n\n" +
		"Region     Units    Revenue\n" +
		"North      120      1,200\n" +
		"South      80       800\n\n" +
		"Figures are unaudited."

	got := renderPage(page)

	assert.Contains(t, got, "Sales summary for the quarter.")
	assert.Contains(t, got, "Figures are unaudited.")
	assert.Contains(t, got, "\n\nTables:\nTable:\nRegion | Units | Revenue\nNorth | 120 | 1,200\nSouth | 80 | 800")
}

func TestRenderPage_SingleAlignedLineIsNotATable(t *testing.T) {
	page := "Invoice      #42\nThank you for your business."
	assert.NotContains(t, renderPage(page), "Tables:")
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}

func TestCopyMetadata(t *testing.T) {
	tests := []struct {
		name string
		src  map[string]any
	}{
		{
			name: "nil map",
			src:  nil,
		},
		{
			name: "empty map",
			src:  map[string]any{},
		},
		{
			name: "with values",
			src: map[string]any{
				"key1": "value1",
				"key2": 42,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := copyMetadata(tc.src)
			if tc.src == nil {
				assert.Nil(t, result)
			} else {
				assert.Equal(t, tc.src, result)
			}
		})
	}
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	normaliser := NewWithRunner(runner)
	require.NotNil(t, normaliser)
	assert.Equal(t, runner, normaliser.runner)
}

func TestNormalise_WithMockRunner(t *testing.T) {
	runner := &mockRunner{
		output: []byte("PDF Title\n\nThis is the first page.\n\fSecond page text.\n\f\f"),
	}
	normaliser := NewWithRunner(runner)

	raw := pdfDoc("/path/to/document.pdf")
	raw.Metadata = map[string]any{"department": "finance"}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "pdftotext", runner.name)
	require.Len(t, runner.args, 5)
	assert.Equal(t, "-layout", runner.args[0])
	assert.Equal(t, "-", runner.args[4])

	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "/path/to/document.pdf", doc.URI)
	assert.Equal(t, "PDF Title", doc.Title)
	assert.Equal(t, domain.ChunkTypePDFPage, doc.Kind)

	// The third page is blank and skipped, but still counted.
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "PDF Title\n\nThis is the first page.", doc.Sections[0].Text)
	assert.Equal(t, 1, *doc.Sections[0].PageNumber)
	assert.Equal(t, 3, *doc.Sections[0].TotalPages)
	assert.Equal(t, "Second page text.", doc.Sections[1].Text)
	assert.Equal(t, 2, *doc.Sections[1].PageNumber)

	assert.Equal(t, "application/pdf", doc.Metadata["mime_type"])
	assert.Equal(t, "pdf", doc.Metadata["format"])
	assert.Equal(t, "finance", doc.Metadata["department"])
	assert.Equal(t, 3, doc.Metadata["total_pages"])
}

func TestNormalise_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}
	normaliser := NewWithRunner(runner)

	result, err := normaliser.Normalise(context.Background(), pdfDoc("/path/to/document.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Nil(t, result)
}

func TestNormalise_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}
	normaliser := NewWithRunner(runner)

	_, err := normaliser.Normalise(context.Background(), pdfDoc("/path/to/document.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.NotErrorIs(t, err, domain.ErrParse)
	assert.Contains(t, err.Error(), "brew install poppler")
}

// Integration test - only runs if pdftotext is available.
func TestNormalise_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}

	_, err := New().Normalise(context.Background(), pdfDoc("/path/to/broken.pdf"))
	assert.ErrorIs(t, err, domain.ErrParse)
}
