// Package segment splits document text into addressable chunks.
package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSeparator is the paragraph boundary: one blank line.
	DefaultSeparator = "\n\n"
	// DefaultMinLength is the trimmed rune count a section must exceed to be kept.
	DefaultMinLength = 50
	// DefaultMaxRefLength caps the source_ref citation key, in runes.
	DefaultMaxRefLength = 70
)

// Chunk is a contiguous slice of the document.
type Chunk struct {
	ID        string `json:"id"`
	SourceRef string `json:"source_ref"`
	Text      string `json:"text"`
	// Index is the ordinal position of the section in the document,
	// counting sections that were discarded.
	Index int `json:"index"`
}

// Relevant reports whether the chunk text contains any of the keywords
// (case-sensitive substring match).
func (c Chunk) Relevant(keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(c.Text, kw) {
			return true
		}
	}
	return false
}

// Segmenter splits text on a paragraph boundary.
type Segmenter struct {
	Separator    string
	MinLength    int
	MaxRefLength int
}

// New returns a Segmenter with defaults applied to zero-value fields.
func New(cfg Segmenter) *Segmenter {
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxRefLength <= 0 {
		cfg.MaxRefLength = DefaultMaxRefLength
	}
	return &cfg
}

// Split produces the chunks for text. A document without any qualifying
// section yields an empty, non-nil slice.
func (s *Segmenter) Split(text string) []Chunk {
	text = normalizeNewlines(text)
	sections := strings.Split(text, s.Separator)

	chunks := make([]Chunk, 0, len(sections))
	for i, section := range sections {
		trimmed := strings.TrimSpace(section)
		if utf8.RuneCountInString(trimmed) <= s.MinLength {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:        fmt.Sprintf("chunk_%d", i),
			SourceRef: sourceRef(trimmed, s.MaxRefLength),
			Text:      section,
			Index:     i,
		})
	}
	return chunks
}

// sourceRef is the first line of the section, truncated to max runes.
func sourceRef(trimmed string, max int) string {
	line, _, _ := strings.Cut(trimmed, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= max {
		return line
	}
	return string([]rune(line)[:max])
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
