// Package chunker splits normalised documents into sentence-aligned,
// overlapping chunks sized in estimated tokens.
package chunker

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// hardCutLookback is the fraction of a chunk searched backwards for
// whitespace when a single sentence has to be cut.
const hardCutLookback = 10

// Processor splits document sections into chunks.
type Processor struct {
	chunkSize int
	overlap   int
	splitter  SentenceSplitter
	now       func() time.Time
	newID     func() string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the default chunk size in estimated tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the default overlap in estimated tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSplitter replaces the sentence splitter.
func WithSplitter(s SentenceSplitter) Option {
	return func(p *Processor) {
		if s != nil {
			p.splitter = s
		}
	}
}

// WithClock sets the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: domain.DefaultChunkSize,
		overlap:   domain.DefaultChunkOverlap,
		splitter:  RegexSplitter{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the defaults used when a call passes a zero config.
func (p *Processor) Config() domain.ChunkingConfig {
	return domain.ChunkingConfig{ChunkSize: p.chunkSize, ChunkOverlap: p.overlap}
}

// resolve fills a zero config with defaults and clamps overlap below size.
func (p *Processor) resolve(cfg domain.ChunkingConfig) domain.ChunkingConfig {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = p.chunkSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = p.overlap
		}
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 4
	}
	return cfg
}

// Chunk splits each section of doc into chunks. chunk_index runs across
// the whole document; overlap is only applied within a section.
func (p *Processor) Chunk(ctx context.Context, doc *domain.Document, cfg domain.ChunkingConfig) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	cfg = p.resolve(cfg)
	createdAt := p.now().UTC()

	var chunks []domain.Chunk
	for i := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		section := &doc.Sections[i]
		text := Clean(section.Text)
		if text == "" {
			continue
		}

		for _, s := range p.split(text, cfg) {
			chunk := p.build(doc, section, text[s.start:s.end], s.overlap, len(chunks), cfg, createdAt)
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// span is a chunk's byte range within a cleaned section, plus how many
// leading bytes repeat the previous chunk.
type span struct {
	start, end int
	overlap    int
}

// split cuts cleaned text into chunk spans. Segments (sentences, or pieces
// of oversized sentences) are accumulated while they fit; the next chunk
// starts at the earliest segment boundary inside the overlap window that
// still leaves room for the following segment, so overlap is always whole
// segments, never exceeds the configured size, and every chunk adds text.
func (p *Processor) split(text string, cfg domain.ChunkingConfig) []span {
	maxBytes := cfg.ChunkSize * domain.CharsPerToken
	overlapBytes := cfg.ChunkOverlap * domain.CharsPerToken

	segs := segments(text, p.splitter.Split(text), maxBytes)

	var out []span
	prevOverlap := 0
	i := 0
	for i < len(segs) {
		start := segs[i][0]
		end := segs[i][1]
		j := i + 1
		for j < len(segs) && segs[j][1]-start <= maxBytes {
			end = segs[j][1]
			j++
		}
		out = append(out, span{start: start, end: end, overlap: prevOverlap})
		if j >= len(segs) {
			break
		}

		// The next chunk must reach segs[j], or it would hold nothing new.
		next := j
		for k := i + 1; k < j; k++ {
			if end-segs[k][0] <= overlapBytes && segs[j][1]-segs[k][0] <= maxBytes {
				next = k
				break
			}
		}
		prevOverlap = end - segs[next][0]
		i = next
	}
	return out
}

// segments converts sentences to byte ranges, hard-cutting any sentence
// longer than maxBytes.
func segments(text string, sentences []string, maxBytes int) [][2]int {
	segs := make([][2]int, 0, len(sentences))
	pos := 0
	for _, s := range sentences {
		start, end := pos, pos+len(s)
		pos = end
		for end-start > maxBytes {
			cut := hardCut(text, start, maxBytes)
			segs = append(segs, [2]int{start, cut})
			start = cut
		}
		if end > start {
			segs = append(segs, [2]int{start, end})
		}
	}
	return segs
}

// hardCut returns the end of a piece starting at start, at most maxBytes long.
// It prefers to cut just after whitespace within the lookback window and
// never splits a UTF-8 sequence.
func hardCut(text string, start, maxBytes int) int {
	limit := start + maxBytes
	window := maxBytes / hardCutLookback
	for i := limit; i > limit-window && i > start; i-- {
		c := text[i-1]
		if c == ' ' || c == '\n' || c == '\t' {
			return i
		}
	}
	cut := limit
	for cut > start+1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

func (p *Processor) build(
	doc *domain.Document,
	section *domain.Section,
	text string,
	overlap int,
	index int,
	cfg domain.ChunkingConfig,
	createdAt time.Time,
) domain.Chunk {
	extra := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		extra[k] = v
	}
	extra[domain.ExtraOverlapBytes] = overlap
	if section.Label != "" {
		extra[domain.ExtraSection] = section.Label
	}

	meta := domain.ChunkMetadata{
		SchemaVersion: domain.MetadataSchemaVersion,
		SourceFile:    doc.URI,
		FileName:      baseName(doc.URI),
		FileHash:      doc.FileHash,
		ChunkIndex:    index,
		ChunkType:     doc.Kind,
		TokenCount:    domain.EstimateTokens(text),
		CharCount:     utf8.RuneCountInString(text),
		CreatedAt:     createdAt,
		ChunkSize:     cfg.ChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		Extra:         extra,
	}
	if section.PageNumber != nil {
		meta.PageNumber = domain.IntPtr(*section.PageNumber)
	}
	if section.TotalPages != nil {
		meta.TotalPages = domain.IntPtr(*section.TotalPages)
	}
	if meta.ChunkType == "" {
		meta.ChunkType = domain.ChunkTypeText
	}

	return domain.Chunk{
		ID:       p.newID(),
		Text:     text,
		Metadata: meta,
	}
}

func baseName(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' || uri[i] == '\\' {
			return uri[i+1:]
		}
	}
	return uri
}
