package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedTypes(t *testing.T) {
	normaliser := New()

	assert.Equal(t, []string{".md", ".markdown"}, normaliser.SupportedExtensions())
	mimeTypes := normaliser.SupportedMIMETypes()
	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	normaliser := New()
	assert.Equal(t, 50, normaliser.Priority())
}

func TestNormalise_Success(t *testing.T) {
	normaliser := New()

	raw := &domain.RawDocument{
		URI:      "/path/to/document.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a test."),
	}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, result)

	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, raw.URI, doc.URI)
	assert.Equal(t, "Hello World", doc.Title)
	assert.Equal(t, domain.ChunkTypeText, doc.Kind)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Hello World", doc.Sections[0].Label)
	assert.Equal(t, "Hello World\n\nThis is a test.", doc.Sections[0].Text)
	assert.Equal(t, "text/markdown", doc.Metadata["mime_type"])
	assert.Equal(t, "markdown", doc.Metadata["format"])
}

func TestNormalise_NilDocument(t *testing.T) {
	normaliser := New()

	result, err := normaliser.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_EmptyContent(t *testing.T) {
	normaliser := New()

	raw := &domain.RawDocument{
		URI:      "/path/to/empty.md",
		MIMEType: "text/markdown",
		Content:  []byte(""),
	}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, result.Document.Sections)
}

func TestNormalise_SectionsByHeading(t *testing.T) {
	normaliser := New()

	content := "Intro text.\n\n# Main Title\n\nBody one.\n\n## Part Two\n\nBody **two**.\n\n### Deep\n\nDeeper."
	raw := &domain.RawDocument{
		URI:     "/docs/guide.md",
		Content: []byte(content),
	}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)

	sections := result.Document.Sections
	require.Len(t, sections, 3)

	assert.Equal(t, "", sections[0].Label)
	assert.Equal(t, "Intro text.", sections[0].Text)

	assert.Equal(t, "Main Title", sections[1].Label)
	assert.Equal(t, "Main Title\n\nBody one.", sections[1].Text)

	// Level three headings stay inside their parent section.
	assert.Equal(t, "Part Two", sections[2].Label)
	assert.Equal(t, "Part Two\n\nBody two.\n\nDeep\n\nDeeper.", sections[2].Text)
}

func TestNormalise_HeadingInsideCodeFence(t *testing.T) {
	normaliser := New()

	content := "# Setup\n\n```sh\n# not a heading\nmake\n```\n"
	raw := &domain.RawDocument{
		URI:     "/docs/setup.md",
		Content: []byte(content),
	}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, result.Document.Sections, 1)
	assert.Equal(t, "Setup", result.Document.Sections[0].Label)
	assert.Contains(t, result.Document.Sections[0].Text, "make")
}

func TestNormalise_TitleExtraction(t *testing.T) {
	tests := []struct {
		name          string
		content       string
		uri           string
		expectedTitle string
	}{
		{
			name:          "H1 heading",
			content:       "# My Document\n\nContent here.",
			uri:           "/doc.md",
			expectedTitle: "My Document",
		},
		{
			name:          "H1 with extra spaces",
			content:       "#   Spaced Title   \n\nContent",
			uri:           "/doc.md",
			expectedTitle: "Spaced Title",
		},
		{
			name:          "no heading - fallback to filename",
			content:       "Just some content without heading.",
			uri:           "/my_document.md",
			expectedTitle: "my document",
		},
		{
			name:          "H2 first - fallback to filename",
			content:       "## Second Level\n\nNo H1.",
			uri:           "/readme.md",
			expectedTitle: "readme",
		},
	}

	normaliser := New()
	ctx := context.Background()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := &domain.RawDocument{
				URI:      tc.uri,
				MIMEType: "text/markdown",
				Content:  []byte(tc.content),
			}

			result, err := normaliser.Normalise(ctx, raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedTitle, result.Document.Title)
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "headings removed",
			input:    "# Title\n## Subtitle\n### Third",
			expected: "Title\nSubtitle\nThird",
		},
		{
			name:     "emphasis removed",
			input:    "This is **bold** and *italic* text",
			expected: "This is bold and italic text",
		},
		{
			name:     "links converted",
			input:    "Click [here](https://example.com)",
			expected: "Click here",
		},
		{
			name:     "images keep alt text",
			input:    "See ![alt text](image.png) here",
			expected: "See alt text here",
		},
		{
			name:     "code fences removed, body kept",
			input:    "Before\n```go\ncode here\n```\nAfter",
			expected: "Before\ncode here\n\nAfter",
		},
		{
			name:     "inline code unwrapped",
			input:    "Use `code` here",
			expected: "Use code here",
		},
		{
			name:     "blockquotes cleaned",
			input:    "> This is a quote",
			expected: "This is a quote",
		},
		{
			name:     "list markers removed",
			input:    "- Item 1\n- Item 2",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "numbered list markers removed",
			input:    "1. First\n2. Second",
			expected: "First\nSecond",
		},
		{
			name:     "identifiers untouched",
			input:    "call snake_case_name now",
			expected: "call snake_case_name now",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripMarkdown(tc.input))
		})
	}
}

func TestNormalise_MetadataPreserved(t *testing.T) {
	normaliser := New()

	raw := &domain.RawDocument{
		URI:      "/path/document.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Test"),
		Metadata: map[string]any{
			"author": "test",
			"tags":   []string{"markdown", "test"},
		},
	}

	result, err := normaliser.Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "test", doc.Metadata["author"])
	assert.Equal(t, []string{"markdown", "test"}, doc.Metadata["tags"])
	assert.Equal(t, "markdown", doc.Metadata["format"])
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}

func BenchmarkStripMarkdown(b *testing.B) {
	content := "# Heading\n\nParagraph with **bold** and *italic*.\n\n- List item 1\n- List item 2\n\n[Link](https://example.com)\n\n```\ncode block\n```"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = stripMarkdown(content)
	}
}
