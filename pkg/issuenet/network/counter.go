package network

import "sort"

// Counter maintains per-cluster keyword counts and document co-occurrence
// counts.
type Counter struct {
	N   int64                 // documents added
	Nx  map[string]int64      // total occurrences per keyword
	Nxy map[KeywordPair]int64 // documents containing both keywords
}

// KeywordPair is an unordered keyword pair stored with A < B.
type KeywordPair struct {
	A, B string
}

// NewPair returns the canonical pair for two keywords.
func NewPair(x, y string) KeywordPair {
	if x > y {
		x, y = y, x
	}
	return KeywordPair{A: x, B: y}
}

// NewCounter creates a new co-occurrence counter
func NewCounter() *Counter {
	return &Counter{
		Nx:  make(map[string]int64),
		Nxy: make(map[KeywordPair]int64),
	}
}

// AddDocument counts every keyword occurrence of a document and every
// unordered pair of its distinct keywords once.
func (c *Counter) AddDocument(keywords []string) {
	c.N++

	seen := make(map[string]struct{}, len(keywords))
	unique := make([]string, 0, len(keywords))
	for _, k := range keywords {
		c.Nx[k]++
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}

	sort.Strings(unique)
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			c.Nxy[KeywordPair{A: unique[i], B: unique[j]}]++
		}
	}
}

// PairCount returns the co-occurrence count for two keywords in any order.
func (c *Counter) PairCount(x, y string) int64 {
	return c.Nxy[NewPair(x, y)]
}

// Count returns the occurrence count of a keyword.
func (c *Counter) Count(k string) int64 {
	return c.Nx[k]
}

// UniqueKeywords returns the number of distinct keywords
func (c *Counter) UniqueKeywords() int {
	return len(c.Nx)
}

// UniquePairs returns the number of distinct pairs
func (c *Counter) UniquePairs() int {
	return len(c.Nxy)
}
