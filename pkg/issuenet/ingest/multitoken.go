package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MultiTokenParser joins dictionary phrases such as "의대 증원" into a single
// compound keyword and maps single-token aliases to their canonical form.
type MultiTokenParser struct {
	dict   map[string]DictEntry // phrase -> entry
	maxLen int
}

// DictEntry represents a dictionary entry for a compound keyword
type DictEntry struct {
	Canonical string
	Category  string
	Variants  []string
}

// NewMultiTokenParser creates a new parser with the given dictionary
func NewMultiTokenParser(entries []DictEntry) *MultiTokenParser {
	dict := make(map[string]DictEntry)
	maxLen := 1
	add := func(phrase string, e DictEntry) {
		key := phraseKey(phrase)
		if key == "" {
			return
		}
		dict[key] = e
		if l := len(strings.Fields(key)); l > maxLen {
			maxLen = l
		}
	}
	for _, e := range entries {
		e.Canonical = norm.NFC.String(strings.ToLower(e.Canonical))
		add(e.Canonical, e)
		for _, v := range e.Variants {
			add(v, e)
		}
	}
	return &MultiTokenParser{dict: dict, maxLen: maxLen}
}

// Len returns the number of phrases the parser recognizes.
func (p *MultiTokenParser) Len() int {
	if p == nil {
		return 0
	}
	return len(p.dict)
}

// Parse applies greedy longest-match to recognize compound keywords
func (p *MultiTokenParser) Parse(tokens []string) []string {
	if p == nil || len(p.dict) == 0 {
		return tokens
	}

	result := make([]string, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		matched := ""
		matchLen := 1

		maxPhrase := p.maxLen
		if remaining := len(tokens) - i; maxPhrase > remaining {
			maxPhrase = remaining
		}
		for n := maxPhrase; n >= 2; n-- {
			if entry, ok := p.dict[strings.Join(tokens[i:i+n], " ")]; ok {
				matched = entry.Canonical
				matchLen = n
				break
			}
		}

		if matched != "" {
			result = append(result, matched)
			i += matchLen
			continue
		}
		if entry, ok := p.dict[tokens[i]]; ok {
			result = append(result, entry.Canonical)
		} else {
			result = append(result, tokens[i])
		}
		i++
	}

	return result
}

func phraseKey(phrase string) string {
	return strings.Join(strings.Fields(norm.NFC.String(strings.ToLower(phrase))), " ")
}
