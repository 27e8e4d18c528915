package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragcore/internal/core/domain"
)

// PromptBuilder renders retrieved chunks and a question into a generation prompt.
// The context block is held to a token budget using the configured strategy.
type PromptBuilder struct {
	template  string
	maxTokens int
	strategy  domain.TruncationStrategy
}

// NewPromptBuilder creates a builder. An empty template uses the built-in default,
// a non-positive budget disables truncation.
func NewPromptBuilder(template string, maxContextTokens int, strategy domain.TruncationStrategy) *PromptBuilder {
	if template == "" {
		template = domain.DefaultRAGAnswerPrompt
	}
	if !strategy.IsValid() {
		strategy = domain.TruncationDropLowest
	}
	return &PromptBuilder{template: template, maxTokens: maxContextTokens, strategy: strategy}
}

// contextBlock is one retrieved chunk as it appears in the prompt.
type contextBlock struct {
	header string
	text   string
}

func (b contextBlock) size() int {
	return utf8.RuneCountInString(b.header) + utf8.RuneCountInString(b.text) + 1
}

// Build returns the prompt and how many chunks made it into the context.
func (p *PromptBuilder) Build(question string, hits []domain.SearchHit) (string, int) {
	ordered := make([]domain.SearchHit, len(hits))
	copy(ordered, hits)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	blocks := make([]contextBlock, len(ordered))
	for i := range ordered {
		blocks[i] = contextBlock{
			header: documentHeader(i+1, &ordered[i]),
			text:   ordered[i].Text,
		}
	}

	if p.maxTokens > 0 {
		budget := p.maxTokens * domain.CharsPerToken
		switch p.strategy {
		case domain.TruncationTrimTail:
			blocks = trimTail(blocks, budget)
		default:
			blocks = dropLowest(blocks, budget)
		}
	}

	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(b.header)
		sb.WriteString(b.text)
		sb.WriteByte('\n')
	}

	r := strings.NewReplacer(domain.PlaceholderContext, sb.String(), domain.PlaceholderQuestion, question)
	return r.Replace(p.template), len(blocks)
}

// documentHeader labels a chunk with its source, page and relevance.
func documentHeader(i int, hit *domain.SearchHit) string {
	source := hit.Metadata.SourceFile
	if source == "" {
		source = "Unknown"
	}
	page := "N/A"
	if hit.Metadata.PageNumber != nil {
		page = fmt.Sprint(*hit.Metadata.PageNumber)
	}
	return fmt.Sprintf("\n--- Document %d (Source: %s, Page: %s, Relevance: %.3f) ---\n", i, source, page, hit.Score)
}

func totalSize(blocks []contextBlock) int {
	n := 0
	for _, b := range blocks {
		n += b.size()
	}
	return n
}

// dropLowest removes the lowest-scoring blocks until the rest fit. The best
// block always survives, trimmed if it alone exceeds the budget.
func dropLowest(blocks []contextBlock, budget int) []contextBlock {
	for len(blocks) > 1 && totalSize(blocks) > budget {
		blocks = blocks[:len(blocks)-1]
	}
	if len(blocks) == 1 && blocks[0].size() > budget {
		room := budget - utf8.RuneCountInString(blocks[0].header) - 1
		blocks[0].text = truncateRunes(blocks[0].text, max(room, 0))
	}
	return blocks
}

// trimTail keeps every block and shortens texts from the last block backwards.
func trimTail(blocks []contextBlock, budget int) []contextBlock {
	excess := totalSize(blocks) - budget
	for i := len(blocks) - 1; i >= 0 && excess > 0; i-- {
		n := utf8.RuneCountInString(blocks[i].text)
		cut := min(excess, n)
		blocks[i].text = truncateRunes(blocks[i].text, n-cut)
		excess -= cut
	}
	return blocks
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// previewText shortens source text for responses, marking the cut with "...".
func previewText(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}
