package stoplist

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Manager holds the stopword set used by the keyword extractor.
// Terms are stored NFC-normalised and lowercased so they compare equal to
// tokenizer output.
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a new stoplist manager
func NewManager(initialStops []string) *Manager {
	m := &Manager{stops: make(map[string]struct{}, len(initialStops))}
	for _, s := range initialStops {
		m.Add(s)
	}
	return m
}

// Default returns a manager seeded with the built-in news stoplist:
// wire-service boilerplate, time words, reporting verbs, and the party and
// office names that would otherwise dominate every cluster.
func Default() *Manager {
	terms, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("stoplist: embedded default is invalid: %v", err))
	}
	return NewManager(terms)
}

// Parse decodes a YAML stoplist document with a top-level "terms" list.
func Parse(data []byte) ([]string, error) {
	var doc struct {
		Terms []string `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse stoplist: %w", err)
	}
	return doc.Terms, nil
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	_, ok := m.stops[normalize(token)]
	return ok
}

// Add adds a token to the stoplist
func (m *Manager) Add(token string) {
	token = normalize(token)
	if token == "" {
		return
	}
	m.stops[token] = struct{}{}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, normalize(token))
}

// All returns all stopwords in sorted order
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of stopwords
func (m *Manager) Len() int {
	return len(m.stops)
}

func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
