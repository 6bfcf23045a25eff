package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/aigent/issuenet/pkg/issuenet/ingest"
	"github.com/aigent/issuenet/pkg/issuenet/stoplist"
)

// LoadStoplist returns the built-in stoplist extended with the terms of
// the YAML file at path. An empty path returns the built-in list.
func LoadStoplist(path string) (*stoplist.Manager, error) {
	m := stoplist.Default()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	terms, err := stoplist.Parse(data)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		m.Add(t)
	}
	return m, nil
}

// LoadDict loads the compound keyword dictionary.
// Format: canonical|variant1|variant2|category, one entry per line; lines
// starting with # are comments.
func LoadDict(path string) ([]ingest.DictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDict(string(data))
}

// ParseDict parses dictionary text in the LoadDict format.
func ParseDict(text string) ([]ingest.DictEntry, error) {
	var entries []ingest.DictEntry
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			return nil, fmt.Errorf("dictionary line %d: want canonical|...|category, got %q", i+1, line)
		}
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		if parts[0] == "" {
			return nil, fmt.Errorf("dictionary line %d: empty canonical form", i+1)
		}

		entries = append(entries, ingest.DictEntry{
			Canonical: parts[0],
			Variants:  parts[1 : len(parts)-1],
			Category:  parts[len(parts)-1],
		})
	}
	return entries, nil
}

// Pipeline builds the keyword pipeline from the configured stoplist and
// dictionary files.
func (c Config) Pipeline() (*ingest.Pipeline, error) {
	stops, err := LoadStoplist(c.StoplistPath)
	if err != nil {
		return nil, fmt.Errorf("load stoplist: %w", err)
	}

	var entries []ingest.DictEntry
	if c.DictPath != "" {
		if entries, err = LoadDict(c.DictPath); err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
	}
	return ingest.NewPipeline(ingest.NewTokenizer(stops), ingest.NewMultiTokenParser(entries)), nil
}
