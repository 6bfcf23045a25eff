// Package query answers the read-side questions a dashboard asks of a
// populated store: ranked issues, issue articles, keyword graphs and
// mention time series.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aigent/issuenet/pkg/issuenet/internalerr"
	"github.com/aigent/issuenet/pkg/issuenet/store"
)

// Store is the read surface the service needs.
type Store interface {
	TopIssues(ctx context.Context, limit int) ([]store.Issue, error)
	RecentIssues(ctx context.Context, limit int) ([]store.Issue, error)
	GetIssue(ctx context.Context, id int64) (store.Issue, error)
	ArticlesByIssue(ctx context.Context, issueID int64, limit int) ([]store.Article, error)
	RelationsByIssues(ctx context.Context, issueIDs []int64) ([]store.KeywordRelation, error)
	RelationsByKeyword(ctx context.Context, keyword string, limit int) ([]store.KeywordRelation, error)
	MentionSeries(ctx context.Context, keyword string) ([]store.MentionPoint, error)
}

// RankedIssue is an issue with its 1-based position in a listing.
type RankedIssue struct {
	Rank int `json:"rank"`
	store.Issue
}

// GraphNode is one keyword in a graph.
type GraphNode struct {
	ID string `json:"id"`
}

// GraphLink is an undirected weighted edge; Source sorts before Target.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int64  `json:"value"`
}

// GraphData is a node/link graph ready for a force layout.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Neighbor is a keyword adjacent to an ego network's center.
type Neighbor struct {
	Keyword string `json:"keyword"`
	Weight  int64  `json:"weight"`
}

// EgoNetwork is the one-hop neighbourhood of Center.
type EgoNetwork struct {
	Center    string     `json:"center"`
	Neighbors []Neighbor `json:"neighbors"`
	Graph     GraphData  `json:"graph"`
}

// Service serves read queries from a Store.
type Service struct {
	store Store
}

// NewService creates a query service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// TopIssues lists the n largest issues.
func (s *Service) TopIssues(ctx context.Context, n int) ([]RankedIssue, error) {
	issues, err := s.store.TopIssues(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("top issues: %w", err)
	}
	return rank(issues), nil
}

// RecentIssues lists the n newest issues, larger first within a run.
func (s *Service) RecentIssues(ctx context.Context, n int) ([]RankedIssue, error) {
	issues, err := s.store.RecentIssues(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("recent issues: %w", err)
	}
	return rank(issues), nil
}

func rank(issues []store.Issue) []RankedIssue {
	out := make([]RankedIssue, len(issues))
	for i, is := range issues {
		out[i] = RankedIssue{Rank: i + 1, Issue: is}
	}
	return out
}

// IssueArticles lists an issue's articles newest first. limit <= 0 means
// all of them.
func (s *Service) IssueArticles(ctx context.Context, issueID int64, limit int) ([]store.Article, error) {
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return nil, err
	}
	return s.store.ArticlesByIssue(ctx, issueID, limit)
}

// TrendGraph merges the keyword networks of the n largest issues. Nodes
// are every issue keyword plus every relation endpoint; links sum the
// frequency of each pair across issues and days.
func (s *Service) TrendGraph(ctx context.Context, n int) (GraphData, error) {
	issues, err := s.store.TopIssues(ctx, n)
	if err != nil {
		return GraphData{}, fmt.Errorf("trend graph: %w", err)
	}
	if len(issues) == 0 {
		return GraphData{Nodes: []GraphNode{}, Links: []GraphLink{}}, nil
	}

	ids := make([]int64, len(issues))
	keywords := make(map[string]struct{})
	for i, is := range issues {
		ids[i] = is.ID
		for _, kw := range is.Keywords {
			keywords[kw] = struct{}{}
		}
	}

	rels, err := s.store.RelationsByIssues(ctx, ids)
	if err != nil {
		return GraphData{}, fmt.Errorf("trend graph: %w", err)
	}
	return buildGraph(keywords, rels), nil
}

// EgoNetwork returns the keywords sharing a relation with keyword,
// weighted by summed frequency, strongest first. limit <= 0 keeps all.
func (s *Service) EgoNetwork(ctx context.Context, keyword string, limit int) (EgoNetwork, error) {
	center, err := normalizeKeyword(keyword)
	if err != nil {
		return EgoNetwork{}, err
	}
	rels, err := s.store.RelationsByKeyword(ctx, center, 0)
	if err != nil {
		return EgoNetwork{}, fmt.Errorf("ego network %q: %w", center, err)
	}

	weights := make(map[string]int64)
	for _, r := range rels {
		other := r.KeywordB
		if r.KeywordB == center {
			other = r.KeywordA
		}
		weights[other] += r.Frequency
	}

	neighbors := make([]Neighbor, 0, len(weights))
	for kw, w := range weights {
		neighbors = append(neighbors, Neighbor{Keyword: kw, Weight: w})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Weight != neighbors[j].Weight {
			return neighbors[i].Weight > neighbors[j].Weight
		}
		return neighbors[i].Keyword < neighbors[j].Keyword
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	ego := EgoNetwork{Center: center, Neighbors: neighbors}
	ego.Graph.Nodes = append(ego.Graph.Nodes, GraphNode{ID: center})
	ego.Graph.Links = []GraphLink{}
	for _, n := range neighbors {
		ego.Graph.Nodes = append(ego.Graph.Nodes, GraphNode{ID: n.Keyword})
		a, b := store.CanonicalPair(center, n.Keyword)
		ego.Graph.Links = append(ego.Graph.Links, GraphLink{Source: a, Target: b, Value: n.Weight})
	}
	return ego, nil
}

// MentionSeries returns the keyword's summed daily relation frequency,
// oldest day first.
func (s *Service) MentionSeries(ctx context.Context, keyword string) ([]store.MentionPoint, error) {
	kw, err := normalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	series, err := s.store.MentionSeries(ctx, kw)
	if err != nil {
		return nil, fmt.Errorf("mention series %q: %w", kw, err)
	}
	return series, nil
}

func buildGraph(keywords map[string]struct{}, rels []store.KeywordRelation) GraphData {
	links := make(map[[2]string]int64)
	for _, r := range rels {
		a, b := store.CanonicalPair(r.KeywordA, r.KeywordB)
		links[[2]string{a, b}] += r.Frequency
		keywords[a] = struct{}{}
		keywords[b] = struct{}{}
	}

	g := GraphData{
		Nodes: make([]GraphNode, 0, len(keywords)),
		Links: make([]GraphLink, 0, len(links)),
	}
	for kw := range keywords {
		g.Nodes = append(g.Nodes, GraphNode{ID: kw})
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })

	for pair, v := range links {
		g.Links = append(g.Links, GraphLink{Source: pair[0], Target: pair[1], Value: v})
	}
	sort.Slice(g.Links, func(i, j int) bool {
		x, y := g.Links[i], g.Links[j]
		if x.Value != y.Value {
			return x.Value > y.Value
		}
		if x.Source != y.Source {
			return x.Source < y.Source
		}
		return x.Target < y.Target
	})
	return g
}

// normalizeKeyword matches the tokenizer's output form.
func normalizeKeyword(keyword string) (string, error) {
	kw := strings.ToLower(norm.NFC.String(strings.TrimSpace(keyword)))
	if kw == "" {
		return "", fmt.Errorf("%w: empty keyword", internalerr.ErrInvalidInput)
	}
	return kw, nil
}
