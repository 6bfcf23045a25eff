// Package textvec builds TF-IDF document vectors.
//
// Weighting follows the common smooth-idf convention:
//
//	idf(t) = ln((1+n) / (1+df(t))) + 1
//
// and every document vector is L2-normalized, so the dot product of two
// vectors is their cosine similarity.
package textvec

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vector is a sparse vector with strictly increasing indices.
type Vector struct {
	Idx []int
	Val []float64
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int { return len(v.Idx) }

// Norm returns the Euclidean norm.
func (v Vector) Norm() float64 {
	var s float64
	for _, x := range v.Val {
		s += x * x
	}
	return math.Sqrt(s)
}

// Dense expands v into a slice of length dim.
func (v Vector) Dense(dim int) []float64 {
	out := make([]float64, dim)
	for k, i := range v.Idx {
		if i < dim {
			out[i] = v.Val[k]
		}
	}
	return out
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(a.Idx) && j < len(b.Idx) {
		switch {
		case a.Idx[i] == b.Idx[j]:
			s += a.Val[i] * b.Val[j]
			i++
			j++
		case a.Idx[i] < b.Idx[j]:
			i++
		default:
			j++
		}
	}
	return s
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty.
func Cosine(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Analyzer turns a document into terms.
type Analyzer func(string) []string

// WordAnalyzer lowercases text and returns runs of letters, digits, and
// underscores that are at least two runes long.
func WordAnalyzer(text string) []string {
	var terms []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := text[start:end]
		if utf8.RuneCountInString(w) >= 2 {
			terms = append(terms, strings.ToLower(w))
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return terms
}

// Vectorizer learns a vocabulary and idf weights from a corpus.
type Vectorizer struct {
	MaxFeatures int      // 0 keeps every term
	Analyzer    Analyzer // nil means WordAnalyzer

	terms []string
	index map[string]int
	idf   []float64
}

// NewVectorizer creates a vectorizer capped at maxFeatures terms.
func NewVectorizer(maxFeatures int, analyzer Analyzer) *Vectorizer {
	return &Vectorizer{MaxFeatures: maxFeatures, Analyzer: analyzer}
}

func (v *Vectorizer) analyze(doc string) []string {
	if v.Analyzer == nil {
		return WordAnalyzer(doc)
	}
	return v.Analyzer(doc)
}

// Fit learns the vocabulary and idf weights. When MaxFeatures is set, the
// most frequent terms across the corpus are kept, ties broken by term.
func (v *Vectorizer) Fit(docs []string) {
	v.fit(v.analyzeAll(docs))
}

// FitTransform fits the vectorizer and returns the document vectors.
func (v *Vectorizer) FitTransform(docs []string) []Vector {
	analyzed := v.analyzeAll(docs)
	v.fit(analyzed)
	out := make([]Vector, len(analyzed))
	for i, terms := range analyzed {
		out[i] = v.vector(terms)
	}
	return out
}

// Transform maps documents onto the fitted vocabulary.
func (v *Vectorizer) Transform(docs []string) []Vector {
	out := make([]Vector, len(docs))
	for i, d := range docs {
		out[i] = v.vector(v.analyze(d))
	}
	return out
}

// Vocabulary returns the fitted terms; position i is feature i.
func (v *Vectorizer) Vocabulary() []string {
	return append([]string(nil), v.terms...)
}

// Dim returns the number of features.
func (v *Vectorizer) Dim() int {
	return len(v.terms)
}

func (v *Vectorizer) analyzeAll(docs []string) [][]string {
	out := make([][]string, len(docs))
	for i, d := range docs {
		out[i] = v.analyze(d)
	}
	return out
}

func (v *Vectorizer) fit(analyzed [][]string) {
	tf := make(map[string]int)
	df := make(map[string]int)
	for _, terms := range analyzed {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			tf[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	terms := make([]string, 0, len(tf))
	for t := range tf {
		terms = append(terms, t)
	}
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(analyzed))
	v.terms = terms
	v.index = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, t := range terms {
		v.index[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
}

func (v *Vectorizer) vector(terms []string) Vector {
	counts := make(map[int]float64, len(terms))
	for _, t := range terms {
		if i, ok := v.index[t]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	idx := make([]int, 0, len(counts))
	for i := range counts {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	val := make([]float64, len(idx))
	var norm float64
	for k, i := range idx {
		w := counts[i] * v.idf[i]
		val[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for k := range val {
		val[k] /= norm
	}
	return Vector{Idx: idx, Val: val}
}
