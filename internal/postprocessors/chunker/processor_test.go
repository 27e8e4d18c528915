package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

func textDoc(sections ...string) *domain.Document {
	doc := &domain.Document{
		ID:       "doc-1",
		URI:      "/uploads/handbook.txt",
		FileHash: "abc123",
		Kind:     domain.ChunkTypeText,
	}
	for _, s := range sections {
		doc.Sections = append(doc.Sections, domain.Section{Text: s})
	}
	return doc
}

// reconstruct drops each chunk's overlapped prefix and joins the rest.
func reconstruct(chunks []domain.Chunk) string {
	var b strings.Builder
	for i := range chunks {
		b.WriteString(chunks[i].Text[chunks[i].OverlapBytes():])
	}
	return b.String()
}

// corpus builds n sentences of varying length.
func corpus(n int) string {
	words := []string{"tuition", "semester", "library", "registration", "deadline", "campus",
		"scholarship", "enrolment", "faculty", "examination", "course", "credit"}
	var b strings.Builder
	for i := 0; i < n; i++ {
		length := 3 + (i*7)%19
		for w := 0; w < length; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[(i+w)%len(words)])
		}
		switch i % 5 {
		case 0:
			b.WriteString("? ")
		case 3:
			b.WriteString(".\n\n")
		default:
			b.WriteString(". ")
		}
	}
	return b.String()
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != domain.DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", domain.DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != domain.DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", domain.DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("custom chunk size", func(t *testing.T) {
		p := New(WithChunkSize(300))
		if p.chunkSize != 300 {
			t.Errorf("expected chunkSize 300, got %d", p.chunkSize)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != domain.DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != domain.DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", New().Name())
	}
}

func TestChunk_SingleSentence(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return fixed }))
	doc := textDoc("Fees for semester 2 are due March 1.")

	chunks, err := p.Chunk(context.Background(), doc, domain.ChunkingConfig{ChunkSize: 500, ChunkOverlap: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.Text != "Fees for semester 2 are due March 1." {
		t.Errorf("unexpected text %q", c.Text)
	}
	if c.ID == "" {
		t.Error("expected chunk ID")
	}
	m := c.Metadata
	if m.ChunkIndex != 0 || m.ChunkType != domain.ChunkTypeText {
		t.Errorf("unexpected index/type: %d %s", m.ChunkIndex, m.ChunkType)
	}
	if m.SourceFile != "/uploads/handbook.txt" || m.FileName != "handbook.txt" || m.FileHash != "abc123" {
		t.Errorf("unexpected source metadata: %+v", m)
	}
	if m.CharCount != 36 || m.TokenCount != 9 {
		t.Errorf("expected 36 chars / 9 tokens, got %d / %d", m.CharCount, m.TokenCount)
	}
	if m.ChunkSize != 500 || m.ChunkOverlap != 50 {
		t.Errorf("expected config 500/50, got %d/%d", m.ChunkSize, m.ChunkOverlap)
	}
	if !m.CreatedAt.Equal(fixed) {
		t.Errorf("expected created_at %v, got %v", fixed, m.CreatedAt)
	}
	if m.SchemaVersion != domain.MetadataSchemaVersion {
		t.Errorf("expected schema version %d", domain.MetadataSchemaVersion)
	}
}

func TestChunk_EmptyText(t *testing.T) {
	p := New()
	for _, text := range []string{"", "   ", "\n\n\t", "\x00\x01"} {
		chunks, err := p.Chunk(context.Background(), textDoc(text), domain.ChunkingConfig{})
		if err != nil {
			t.Errorf("unexpected error for %q: %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestChunk_NilDocument(t *testing.T) {
	if _, err := New().Chunk(context.Background(), nil, domain.ChunkingConfig{}); err == nil {
		t.Error("expected error for nil document")
	}
}

func TestChunk_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Chunk(ctx, textDoc("Some text."), domain.ChunkingConfig{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestChunk_LosslessAndBoundedOverlap(t *testing.T) {
	text := corpus(400)
	cleaned := Clean(text)

	configs := []domain.ChunkingConfig{
		{ChunkSize: 500, ChunkOverlap: 50},
		{ChunkSize: 100, ChunkOverlap: 20},
		{ChunkSize: 50, ChunkOverlap: 0},
		{ChunkSize: 30, ChunkOverlap: 29},
		{ChunkSize: 20, ChunkOverlap: 10},
	}

	for _, cfg := range configs {
		t.Run(fmt.Sprintf("%d/%d", cfg.ChunkSize, cfg.ChunkOverlap), func(t *testing.T) {
			chunks, err := New().Chunk(context.Background(), textDoc(text), cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("expected chunks")
			}

			if got := reconstruct(chunks); got != cleaned {
				t.Errorf("reconstruction differs from cleaned text (len %d vs %d)", len(got), len(cleaned))
			}

			if chunks[0].OverlapBytes() != 0 {
				t.Error("first chunk must not overlap")
			}
			for i := range chunks {
				c := chunks[i]
				if c.Metadata.ChunkIndex != i {
					t.Errorf("chunk %d has index %d", i, c.Metadata.ChunkIndex)
				}
				if c.Metadata.TokenCount > cfg.ChunkSize {
					t.Errorf("chunk %d has %d tokens, size %d", i, c.Metadata.TokenCount, cfg.ChunkSize)
				}
				ov := c.OverlapBytes()
				if ov < 0 || domain.EstimateTokens(c.Text[:ov]) > cfg.ChunkOverlap {
					t.Errorf("chunk %d overlap %d bytes exceeds %d tokens", i, ov, cfg.ChunkOverlap)
				}
				if len(c.Text)-ov <= 0 {
					t.Errorf("chunk %d is entirely overlap", i)
				}
				if i > 0 && ov > 0 {
					prev := chunks[i-1].Text
					if !strings.HasSuffix(prev, c.Text[:ov]) {
						t.Errorf("chunk %d overlap is not the tail of chunk %d", i, i-1)
					}
				}
			}
		})
	}
}

func TestChunk_OverlapAlignsToSentence(t *testing.T) {
	text := "Alpha beta gamma delta. Epsilon zeta eta. Theta iota kappa lambda. Mu nu xi omicron."
	cfg := domain.ChunkingConfig{ChunkSize: 12, ChunkOverlap: 6}

	chunks, err := New().Chunk(context.Background(), textDoc(text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.TrimSpace(chunks[i].Text)
		if first == "" || first[0] < 'A' || first[0] > 'Z' {
			t.Errorf("chunk %d does not start at a sentence: %q", i, chunks[i].Text)
		}
	}
	if chunks[1].OverlapBytes() == 0 {
		t.Error("expected the second chunk to repeat the last sentence of the first")
	}
}

func TestChunk_EveryChunkAddsText(t *testing.T) {
	// The last sentence cannot follow any overlap candidate within the size.
	text := strings.Repeat("a", 28) + ". Bb. Cc. " + strings.Repeat("d", 36) + "."
	cfg := domain.ChunkingConfig{ChunkSize: 10, ChunkOverlap: 5}

	chunks, err := New().Chunk(context.Background(), textDoc(text), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i := range chunks {
		if fresh := len(chunks[i].Text) - chunks[i].OverlapBytes(); fresh <= 0 {
			t.Errorf("chunk %d adds no text: %q", i, chunks[i].Text)
		}
	}
	if !strings.HasPrefix(chunks[1].Text, "ddd") {
		t.Errorf("second chunk should start at the last sentence, got %q", chunks[1].Text)
	}
	if reconstruct(chunks) != Clean(text) {
		t.Error("content lost")
	}
}

func TestChunk_HardCutsOversizedSentence(t *testing.T) {
	long := strings.Repeat("x", 1000) + " " + strings.Repeat("y", 900)
	cfg := domain.ChunkingConfig{ChunkSize: 100, ChunkOverlap: 10}

	chunks, err := New().Chunk(context.Background(), textDoc(long), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 5 {
		t.Fatalf("expected the sentence to be cut, got %d chunks", len(chunks))
	}
	for i := range chunks {
		if len(chunks[i].Text) > cfg.ChunkSize*domain.CharsPerToken {
			t.Errorf("chunk %d is %d bytes", i, len(chunks[i].Text))
		}
	}
	if reconstruct(chunks) != long {
		t.Error("hard cut lost content")
	}
}

func TestChunk_HardCutKeepsRunes(t *testing.T) {
	long := strings.Repeat("é", 700)
	chunks, err := New().Chunk(context.Background(), textDoc(long), domain.ChunkingConfig{ChunkSize: 50, ChunkOverlap: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range chunks {
		if strings.ContainsRune(chunks[i].Text, '�') || !strings.HasPrefix(chunks[i].Text, "é") {
			t.Errorf("chunk %d split a multi-byte rune", i)
		}
	}
	if reconstruct(chunks) != long {
		t.Error("hard cut lost content")
	}
}

func TestChunk_SectionsDoNotOverlap(t *testing.T) {
	doc := &domain.Document{
		URI:  "/docs/guide.pdf",
		Kind: domain.ChunkTypePDFPage,
		Sections: []domain.Section{
			{Text: corpus(30), PageNumber: domain.IntPtr(1), TotalPages: domain.IntPtr(2)},
			{Text: "Second page text.", PageNumber: domain.IntPtr(2), TotalPages: domain.IntPtr(2)},
		},
	}
	chunks, err := New().Chunk(context.Background(), doc, domain.ChunkingConfig{ChunkSize: 40, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := chunks[len(chunks)-1]
	if last.Text != "Second page text." {
		t.Fatalf("unexpected last chunk %q", last.Text)
	}
	if last.OverlapBytes() != 0 {
		t.Error("overlap must not cross sections")
	}
	if *last.Metadata.PageNumber != 2 || *last.Metadata.TotalPages != 2 {
		t.Errorf("unexpected page metadata %d/%d", *last.Metadata.PageNumber, *last.Metadata.TotalPages)
	}
	if last.Metadata.ChunkIndex != len(chunks)-1 {
		t.Error("chunk_index must run across sections")
	}
	if last.Metadata.ChunkType != domain.ChunkTypePDFPage {
		t.Errorf("expected pdf_page, got %s", last.Metadata.ChunkType)
	}
}

func TestChunk_MetadataExtras(t *testing.T) {
	doc := textDoc("One sentence here.")
	doc.Metadata = map[string]any{"department": "finance"}
	doc.Sections[0].Label = "Sheet1"

	chunks, err := New().Chunk(context.Background(), doc, domain.ChunkingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	extra := chunks[0].Metadata.Extra
	if extra["department"] != "finance" {
		t.Error("expected document metadata in extras")
	}
	if extra[domain.ExtraSection] != "Sheet1" {
		t.Error("expected section label in extras")
	}
	if chunks[0].Metadata.PageNumber != nil {
		t.Error("expected no page number for text")
	}
}

func TestChunk_UniqueIDs(t *testing.T) {
	chunks, err := New().Chunk(context.Background(), textDoc(corpus(100)), domain.ChunkingConfig{ChunkSize: 30, ChunkOverlap: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]bool)
	for i := range chunks {
		if seen[chunks[i].ID] {
			t.Fatalf("duplicate ID %s", chunks[i].ID)
		}
		seen[chunks[i].ID] = true
	}
}

func TestChunk_ZeroConfigUsesDefaults(t *testing.T) {
	p := New(WithChunkSize(20), WithOverlap(4))
	chunks, err := p.Chunk(context.Background(), textDoc(corpus(50)), domain.ChunkingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].Metadata.ChunkSize != 20 || chunks[0].Metadata.ChunkOverlap != 4 {
		t.Errorf("expected processor defaults, got %d/%d", chunks[0].Metadata.ChunkSize, chunks[0].Metadata.ChunkOverlap)
	}
}

func defaultTestConfig() domain.ChunkingConfig {
	return domain.ChunkingConfig{ChunkSize: 40, ChunkOverlap: 8}
}
