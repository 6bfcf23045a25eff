// Package cluster groups articles into issues.
//
// Documents are embedded, reduced with a truncated SVD, and clustered with
// HDBSCAN. Clusters with near-identical centroids are then merged, ranked by
// size, and cut to a top list for naming.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
)

// Unclustered is the cluster id of documents that joined no cluster.
const Unclustered = Noise

// Config controls clustering.
type Config struct {
	MinClusterSize int     `yaml:"min_cluster_size"`
	MinSamples     int     `yaml:"min_samples"`
	Dimensions     int     `yaml:"dimensions"`
	MergeThreshold float64 `yaml:"merge_threshold"` // centroid cosine; 0 disables merging
	TopN           int     `yaml:"top_n"`
	TitleWeight    int     `yaml:"title_weight"`
	BodyPrefix     int     `yaml:"body_prefix"`
	Embedder       string  `yaml:"embedder"` // "tfidf" or "gemini"
	MaxFeatures    int     `yaml:"max_features"`
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MinClusterSize: 7,
		MinSamples:     3,
		Dimensions:     10,
		MergeThreshold: 0.9,
		TopN:           15,
		TitleWeight:    3,
		BodyPrefix:     100,
		Embedder:       "tfidf",
		MaxFeatures:    2000,
	}
}

// Assignment is the clustering outcome of one document.
type Assignment struct {
	Cluster    int     // rank-ordered cluster id or Unclustered
	Confidence float64 // membership strength in [0,1]
}

// Cluster is one group of documents. Members are document indices in
// ascending order.
type Cluster struct {
	ID      int
	Members []int
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.Members) }

// Result holds assignments for every input document and the clusters
// ranked by size descending. Cluster i has ID i.
type Result struct {
	Assignments []Assignment
	Clusters    []Cluster
	Merged      int // clusters absorbed by centroid merging
}

// Top returns at most n clusters of at least minSize members, in rank order.
func (r Result) Top(n, minSize int) []Cluster {
	var out []Cluster
	for _, c := range r.Clusters {
		if n > 0 && len(out) == n {
			break
		}
		if c.Size() < minSize {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Representatives returns up to k member indices of c ordered by confidence
// descending, ties by document index.
func (r Result) Representatives(c Cluster, k int) []int {
	members := append([]int(nil), c.Members...)
	sort.SliceStable(members, func(i, j int) bool {
		ci, cj := r.Assignments[members[i]].Confidence, r.Assignments[members[j]].Confidence
		if ci != cj {
			return ci > cj
		}
		return members[i] < members[j]
	})
	if k > 0 && len(members) > k {
		members = members[:k]
	}
	return members
}

// Engine clusters documents.
type Engine struct {
	cfg      Config
	embedder Embedder
	logger   *slog.Logger
}

// New creates an engine. Zero config fields fall back to DefaultConfig;
// a nil embedder means the local TF-IDF embedder with the word analyzer.
func New(cfg Config, embedder Embedder, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = def.MinClusterSize
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.TitleWeight <= 0 {
		cfg.TitleWeight = def.TitleWeight
	}
	if cfg.BodyPrefix <= 0 {
		cfg.BodyPrefix = def.BodyPrefix
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if embedder == nil {
		embedder = TFIDFEmbedder{MaxFeatures: cfg.MaxFeatures}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, embedder: embedder, logger: logger.With("component", "cluster")}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Document builds the clustering text of one article.
func (e *Engine) Document(title, body string) string {
	return BuildDocument(title, body, e.cfg.TitleWeight, e.cfg.BodyPrefix)
}

// Cluster assigns every document to a cluster or Unclustered. Fewer
// documents than MinClusterSize yield an empty result, not an error.
func (e *Engine) Cluster(ctx context.Context, docs []string) (Result, error) {
	res := Result{Assignments: make([]Assignment, len(docs))}
	for i := range res.Assignments {
		res.Assignments[i].Cluster = Unclustered
	}
	if len(docs) < e.cfg.MinClusterSize {
		e.logger.Info("too few documents to cluster", "documents", len(docs), "min_cluster_size", e.cfg.MinClusterSize)
		return res, nil
	}

	vectors, err := e.embedder.Embed(ctx, docs)
	if err != nil {
		return res, fmt.Errorf("%w: %v", internalerr.ErrEmbedding, err)
	}
	if err := checkEmbeddings(vectors, len(docs)); err != nil {
		return res, fmt.Errorf("%w: %v", internalerr.ErrEmbedding, err)
	}

	// Documents without any signal cannot be placed and stay unclustered.
	var keep []int
	var live [][]float64
	for i, v := range vectors {
		if !isZero(v) {
			keep = append(keep, i)
			live = append(live, v)
		}
	}
	if len(live) < e.cfg.MinClusterSize {
		return res, nil
	}

	reduced, err := Reduce(live, e.cfg.Dimensions)
	if err != nil {
		return res, err
	}

	labels, probs := HDBSCAN{MinClusterSize: e.cfg.MinClusterSize, MinSamples: e.cfg.MinSamples}.Fit(reduced)
	res.Merged = mergeSimilar(reduced, labels, e.cfg.MergeThreshold)

	groups := make(map[int][]int)
	for k, l := range labels {
		if l == Noise {
			continue
		}
		groups[l] = append(groups[l], keep[k])
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(groups[ids[i]]) != len(groups[ids[j]]) {
			return len(groups[ids[i]]) > len(groups[ids[j]])
		}
		return ids[i] < ids[j]
	})

	for rank, id := range ids {
		members := groups[id]
		sort.Ints(members)
		res.Clusters = append(res.Clusters, Cluster{ID: rank, Members: members})
	}
	for k, l := range labels {
		if l == Noise {
			continue
		}
		res.Assignments[keep[k]].Confidence = probs[k]
	}
	for _, c := range res.Clusters {
		for _, m := range c.Members {
			res.Assignments[m].Cluster = c.ID
		}
	}

	e.logger.Info("clustered documents",
		"documents", len(docs),
		"clusters", len(res.Clusters),
		"merged", res.Merged,
		"noise", countNoise(res.Assignments))
	return res, nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func countNoise(as []Assignment) int {
	n := 0
	for _, a := range as {
		if a.Cluster == Unclustered {
			n++
		}
	}
	return n
}
