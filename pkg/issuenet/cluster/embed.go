package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/aigent/issuenet/pkg/issuenet/textvec"
)

// Embedder maps documents to dense vectors. Implementations must return one
// vector per input, all of the same length.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// TFIDFEmbedder is the local embedding backend: dense TF-IDF vectors over
// the keyword vocabulary of the batch.
type TFIDFEmbedder struct {
	MaxFeatures int
	Analyzer    textvec.Analyzer
}

// Embed implements Embedder.
func (e TFIDFEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := textvec.NewVectorizer(e.MaxFeatures, e.Analyzer)
	sparse := v.FitTransform(texts)
	dim := v.Dim()
	out := make([][]float64, len(sparse))
	for i, s := range sparse {
		out[i] = s.Dense(dim)
	}
	return out, nil
}

// BuildDocument forms the clustering text of an article: the title repeated
// titleWeight times followed by the first bodyPrefix runes of the body.
func BuildDocument(title, body string, titleWeight, bodyPrefix int) string {
	if titleWeight < 1 {
		titleWeight = 1
	}
	parts := make([]string, 0, titleWeight+1)
	for i := 0; i < titleWeight; i++ {
		parts = append(parts, title)
	}
	if p := runePrefix(body, bodyPrefix); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

func runePrefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func checkEmbeddings(vectors [][]float64, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), want)
	}
	if want == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}
