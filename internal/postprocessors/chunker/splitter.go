package chunker

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// SentenceSplitter cuts cleaned text into sentences.
// Implementations must be lossless: joining the result yields the input.
// Trailing whitespace stays with the sentence it follows.
type SentenceSplitter interface {
	Split(text string) []string
}

// RegexSplitter ends a sentence after '.', '!' or '?' followed by whitespace,
// and at every line break. Closing quotes and brackets stay with the sentence.
type RegexSplitter struct{}

// Split implements SentenceSplitter.
func (RegexSplitter) Split(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\n':
			end := skipSpace(text, i)
			out = append(out, text[start:end])
			start, i = end, end
			continue
		case c == '.' || c == '!' || c == '?':
			j := i + 1
			for j < len(text) && strings.IndexByte(`"')]`, text[j]) >= 0 {
				j++
			}
			if j < len(text) && (text[j] == ' ' || text[j] == '\n') {
				end := skipSpace(text, j)
				out = append(out, text[start:end])
				start, i = end, end
				continue
			}
			i = j
			continue
		}
		i++
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// skipSpace returns the index of the first non-space byte at or after i.
func skipSpace(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\n' || text[i] == '\t') {
		i++
	}
	return i
}

// ProseSplitter uses prose's trained sentence segmenter, which handles
// abbreviations ("Dr.", "e.g.") the regex splitter cuts on. Sentences
// are located back in the source text so offsets stay exact; anything
// prose drops or rewrites is kept by falling back to the regex splitter.
type ProseSplitter struct{}

// Split implements SentenceSplitter.
func (ProseSplitter) Split(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return RegexSplitter{}.Split(text)
	}

	var out []string
	cursor := 0
	for _, sent := range doc.Sentences() {
		s := strings.TrimSpace(sent.Text)
		if s == "" {
			continue
		}
		idx := strings.Index(text[cursor:], s)
		if idx < 0 {
			return RegexSplitter{}.Split(text)
		}
		end := skipSpace(text, cursor+idx+len(s))
		out = append(out, text[cursor:end])
		cursor = end
	}
	if cursor < len(text) {
		out = append(out, text[cursor:])
	}
	return out
}
