// Package network builds the keyword co-occurrence graph of one issue.
package network

import "sort"

// Config bounds the graph.
type Config struct {
	TopNodes  int `yaml:"top_nodes"`
	TopEdges  int `yaml:"top_edges"`
	ShortList int `yaml:"short_list"`
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{TopNodes: 20, TopEdges: 30, ShortList: 10}
}

// Node is a keyword with its occurrence count across the cluster.
type Node struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

// Edge is an undirected co-occurrence with A < B.
type Edge struct {
	A      string `json:"source"`
	B      string `json:"target"`
	Weight int64  `json:"weight"`
}

// Graph is the bounded keyword network of a cluster.
type Graph struct {
	Nodes []Node   `json:"nodes"`
	Edges []Edge   `json:"edges"`
	Short []string `json:"keywords"`
}

// Keywords returns the node keywords in rank order.
func (g Graph) Keywords() []string {
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Keyword
	}
	return out
}

// Builder builds graphs with fixed bounds.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder; zero fields fall back to DefaultConfig.
func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.TopNodes <= 0 {
		cfg.TopNodes = def.TopNodes
	}
	if cfg.TopEdges <= 0 {
		cfg.TopEdges = def.TopEdges
	}
	if cfg.ShortList <= 0 {
		cfg.ShortList = def.ShortList
	}
	return &Builder{cfg: cfg}
}

// Build computes the graph from each member document's keyword occurrences.
func (b *Builder) Build(docs [][]string) Graph {
	c := NewCounter()
	for _, d := range docs {
		c.AddDocument(d)
	}
	return b.FromCounter(c)
}

// FromCounter ranks an existing counter into a bounded graph.
func (b *Builder) FromCounter(c *Counter) Graph {
	nodes := make([]Node, 0, len(c.Nx))
	for k, n := range c.Nx {
		nodes = append(nodes, Node{Keyword: k, Count: n})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Count != nodes[j].Count {
			return nodes[i].Count > nodes[j].Count
		}
		return nodes[i].Keyword < nodes[j].Keyword
	})
	if len(nodes) > b.cfg.TopNodes {
		nodes = nodes[:b.cfg.TopNodes]
	}

	inTop := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		inTop[n.Keyword] = struct{}{}
	}

	var edges []Edge
	for p, w := range c.Nxy {
		_, okA := inTop[p.A]
		_, okB := inTop[p.B]
		if okA && okB {
			edges = append(edges, Edge{A: p.A, B: p.B, Weight: w})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	if len(edges) > b.cfg.TopEdges {
		edges = edges[:b.cfg.TopEdges]
	}

	g := Graph{Nodes: nodes, Edges: edges}
	short := min(b.cfg.ShortList, len(nodes))
	g.Short = g.Keywords()[:short]
	return g
}
