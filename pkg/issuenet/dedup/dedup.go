// Package dedup removes near-duplicate articles before clustering.
package dedup

import (
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/textvec"
)

// Config controls near-duplicate detection.
type Config struct {
	Threshold   float64 `yaml:"threshold"`    // cosine above which a later article is a duplicate
	PrefixChars int     `yaml:"prefix_chars"` // runes of body text compared
	MaxFeatures int     `yaml:"max_features"`
	BatchSize   int     `yaml:"batch_size"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Threshold:   0.90,
		PrefixChars: 300,
		MaxFeatures: 1000,
		BatchSize:   500,
	}
}

// Stats summarizes a dedup pass.
type Stats struct {
	Input      int
	Duplicates int
	Kept       int
}

// Deduplicator compares body prefixes with TF-IDF cosine similarity.
type Deduplicator struct {
	cfg Config
}

// New creates a deduplicator; zero fields fall back to DefaultConfig.
func New(cfg Config) *Deduplicator {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.PrefixChars <= 0 {
		cfg.PrefixChars = def.PrefixChars
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Deduplicator{cfg: cfg}
}

// Dedupe returns articles with near-duplicates removed. The earliest
// occurrence is always kept and survivors keep their relative order.
//
// Term weights are refit on each pass, so removing rows can push other
// pairs over the threshold. Passes repeat over the survivors until one
// removes nothing, which makes the output a fixed point of Dedupe.
func (d *Deduplicator) Dedupe(articles []corpus.Article) ([]corpus.Article, Stats) {
	out := make([]corpus.Article, len(articles))
	copy(out, articles)
	for {
		dup := d.Mark(bodies(out))
		kept := make([]corpus.Article, 0, len(out))
		for i, a := range out {
			if !dup[i] {
				kept = append(kept, a)
			}
		}
		if len(kept) == len(out) {
			break
		}
		out = kept
	}
	return out, Stats{Input: len(articles), Duplicates: len(articles) - len(out), Kept: len(out)}
}

// Mark reports, per text, whether it duplicates an earlier text.
func (d *Deduplicator) Mark(texts []string) []bool {
	n := len(texts)
	dup := make([]bool, n)
	if n == 0 {
		return dup
	}

	docs := make([]string, n)
	for i, t := range texts {
		docs[i] = prefix(t, d.cfg.PrefixChars)
	}
	vecs := textvec.NewVectorizer(d.cfg.MaxFeatures, nil).FitTransform(docs)

	for start := 0; start < n; start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, n)
		for i := start; i < end; i++ {
			if dup[i] || vecs[i].Len() == 0 {
				continue
			}
			for j := i + 1; j < n; j++ {
				if dup[j] {
					continue
				}
				if textvec.Dot(vecs[i], vecs[j]) > d.cfg.Threshold {
					dup[j] = true
				}
			}
		}
	}
	return dup
}

func bodies(articles []corpus.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Body
	}
	return out
}

func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
