package ingest

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/aigent/issuenet/pkg/issuenet/stoplist"
)

// particles are trailing Hangul postpositions stripped from noun tokens.
// Sorted longest first at init so "에서" wins over "서".
var particles = []string{
	"으로부터", "에서부터", "이라는", "이라며", "이라고", "에서는", "에게서", "으로는", "으로도",
	"에서", "으로", "에게", "까지", "부터", "보다", "처럼", "마저", "조차", "라는", "라며", "라고",
	"과의", "와의", "에는", "에도", "에의", "께서", "한테", "이나", "이며", "이자", "이고",
	"은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도", "만",
}

// nounEndings are common noun endings whose last syllable looks like a
// particle ("정상회의", "전문가"). Tokens ending in one are left whole.
var nounEndings = []string{
	"회의", "합의", "논의", "협의", "주의", "동의", "결의", "항의", "건의", "의의",
	"전문가", "정치가", "사업가", "외교가", "평가", "물가", "국가", "주가",
	"제도", "경기도", "제주도", "여의도", "어린이",
}

// predicateEndings mark inflected verbs and adjectives. A token ending in one
// of these is not a keyword.
var predicateEndings = []string{
	"했다", "한다", "된다", "됐다", "있다", "없다", "이다", "였다", "았다", "었다", "겠다",
	"하며", "하고", "해야", "했고", "됐고", "라며", "면서", "하는", "했던", "된", "하겠다",
	"습니다", "합니다", "됩니다",
}

func init() {
	sort.SliceStable(particles, func(i, j int) bool {
		return utf8.RuneCountInString(particles[i]) > utf8.RuneCountInString(particles[j])
	})
}

// minStemRunes is the shortest stem left after stripping a particle.
const minStemRunes = 2

// Tokenizer handles text tokenization and normalization for Korean and
// mixed-script news text.
type Tokenizer struct {
	stops *stoplist.Manager
}

// NewTokenizer creates a new tokenizer with the given stoplist.
// A nil manager disables stopword filtering.
func NewTokenizer(stops *stoplist.Manager) *Tokenizer {
	if stops == nil {
		stops = stoplist.NewManager(nil)
	}
	return &Tokenizer{stops: stops}
}

// Tokenize splits text into normalized keyword tokens, removing stopwords.
func (t *Tokenizer) Tokenize(text string) []string {
	raw := t.Split(text)
	tokens := raw[:0]
	for _, tok := range raw {
		if !t.IsStopword(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Split normalizes text and returns candidate keyword tokens without
// stopword filtering. Compound recognition runs on this output.
func (t *Tokenizer) Split(text string) []string {
	text = norm.NFC.String(text)

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// processToken applies cleaning, particle stripping, and predicate filtering.
func (t *Tokenizer) processToken(token string) string {
	word := cleanToken(token)
	if utf8.RuneCountInString(word) <= 1 {
		return ""
	}

	// Mixed tokens like "5g", "g7", "k-방산" are kept.
	if isNumericOnly(word) {
		return ""
	}

	if endsInHangul(word) {
		if isPredicate(word) {
			return ""
		}
		word = stripParticle(word)
	}

	if utf8.RuneCountInString(word) <= 1 {
		return ""
	}
	return word
}

// IsStopword reports whether word is on the stoplist.
func (t *Tokenizer) IsStopword(word string) bool {
	return t.stops.IsStop(word)
}

// AddStopword adds a word to the stoplist
func (t *Tokenizer) AddStopword(word string) {
	t.stops.Add(word)
}

// RemoveStopword removes a word from the stoplist
func (t *Tokenizer) RemoveStopword(word string) {
	t.stops.Remove(word)
}

// cleanToken strips leading/trailing hyphens and normalizes consecutive hyphens
func cleanToken(token string) string {
	token = strings.Trim(token, "-")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

// isNumericOnly returns true if the token contains only digits and hyphens.
func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

func endsInHangul(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.Is(unicode.Hangul, r)
}

func isPredicate(word string) bool {
	for _, end := range predicateEndings {
		if strings.HasSuffix(word, end) {
			return true
		}
	}
	return false
}

func stripParticle(word string) string {
	for _, end := range nounEndings {
		if strings.HasSuffix(word, end) {
			return word
		}
	}
	n := utf8.RuneCountInString(word)
	for _, p := range particles {
		if !strings.HasSuffix(word, p) {
			continue
		}
		if n-utf8.RuneCountInString(p) < minStemRunes {
			continue
		}
		return strings.TrimSuffix(word, p)
	}
	return word
}
