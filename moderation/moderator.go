// Package moderation masks configured words in outbound content before it
// reaches the backend.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches forbidden words with an Aho-Corasick automaton built
// once at construction. Matching is case-insensitive and ignores
// punctuation between letters; masking replaces the original runes so
// spacing is preserved.
type Moderator struct {
	matcher  *goahocorasick.Machine
	maskRune rune
}

// textMapping links the normalized search text back to rune positions in
// the original.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

func NewModerator(words []string, maskRune rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		patterns = append(patterns, normalizeRunes([]rune(word)))
	}
	if len(patterns) == 0 {
		return &Moderator{maskRune: maskRune}, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, maskRune: maskRune}, nil
}

// Mask returns the content with every forbidden span replaced by the mask
// rune. Content without matches is returned unchanged.
func (m *Moderator) Mask(original string) string {
	if m.matcher == nil {
		return original
	}

	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[start]
		origEnd := mapping.origIdx[end-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.maskRune
		}
	}
	return string(origRunes)
}

// normalize lowercases and keeps letters and digits only, remembering
// where each kept rune came from.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(r))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}
