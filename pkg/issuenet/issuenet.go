// Package issuenet groups a day's political news into issues and builds the
// keyword co-occurrence network of each issue.
//
// A run flows through five stages: near-duplicate removal, clustering,
// issue naming, keyword network extraction, and persistence. Engine wires
// them together; each stage lives in its own package and can be used alone.
package issuenet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aigent/issuenet/internal/logging"
	"github.com/aigent/issuenet/pkg/issuenet/cluster"
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/dedup"
	"github.com/aigent/issuenet/pkg/issuenet/ingest"
	"github.com/aigent/issuenet/pkg/issuenet/metrics"
	"github.com/aigent/issuenet/pkg/issuenet/naming"
	"github.com/aigent/issuenet/pkg/issuenet/network"
	"github.com/aigent/issuenet/pkg/issuenet/persist"
	"github.com/aigent/issuenet/pkg/issuenet/report"
	"github.com/aigent/issuenet/pkg/issuenet/stoplist"
)

// Engine runs the issue pipeline over one batch of articles.
type Engine struct {
	dedup    *dedup.Deduplicator
	cluster  *cluster.Engine
	namer    *naming.Namer
	network  *network.Builder
	pipeline *ingest.Pipeline
	writer   *persist.Writer
	metrics  *metrics.Recorder
	ids      *report.IDs
	logger   *slog.Logger
	topic    string
	reps     int
	now      func() time.Time
}

// Options configures an Engine. Nil components fall back to their package
// defaults; a nil Writer makes every run a dry run.
type Options struct {
	Dedup           *dedup.Deduplicator
	Cluster         *cluster.Engine
	Namer           *naming.Namer
	Network         *network.Builder
	Pipeline        *ingest.Pipeline
	Writer          *persist.Writer
	Metrics         *metrics.Recorder
	Logger          *slog.Logger
	Topic           string
	Representatives int // articles listed per issue in the report
}

// New creates an Engine with the given dependencies.
func New(opts Options) *Engine {
	logger := logging.OrDefault(opts.Logger)
	e := &Engine{
		dedup:    opts.Dedup,
		cluster:  opts.Cluster,
		namer:    opts.Namer,
		network:  opts.Network,
		pipeline: opts.Pipeline,
		writer:   opts.Writer,
		metrics:  opts.Metrics,
		ids:      report.NewIDs(),
		logger:   logger,
		topic:    opts.Topic,
		reps:     opts.Representatives,
		now:      time.Now,
	}
	if e.dedup == nil {
		e.dedup = dedup.New(dedup.DefaultConfig())
	}
	if e.pipeline == nil {
		e.pipeline = ingest.NewPipeline(ingest.NewTokenizer(stoplist.Default()), nil)
	}
	if e.cluster == nil {
		e.cluster = cluster.New(cluster.DefaultConfig(), nil, logger)
	}
	if e.namer == nil {
		e.namer = naming.New(nil, naming.DefaultConfig(), logger)
	}
	if e.network == nil {
		e.network = network.NewBuilder(network.DefaultConfig())
	}
	if e.topic == "" {
		e.topic = persist.DefaultConfig().Topic
	}
	if e.reps <= 0 {
		e.reps = 10
	}
	return e
}

// DryRun reports whether runs skip persistence.
func (e *Engine) DryRun() bool { return e.writer == nil }

// Run processes a loaded corpus end to end. Naming failures never fail a
// run; a persistence failure rolls back every write and is returned.
func (e *Engine) Run(ctx context.Context, in corpus.Result) (rep report.Report, err error) {
	start := e.now()
	rep = report.Report{
		RunID:       e.ids.Next(start),
		StartedAt:   start,
		Loaded:      len(in.Articles),
		RowsSkipped: len(in.Skipped),
		DryRun:      e.DryRun(),
	}
	log := e.logger.With("run_id", rep.RunID)
	written := 0
	for _, s := range in.Skipped {
		log.Warn("row skipped", "row", s.Row, "reason", s.Reason)
	}
	defer func() {
		rep.FinishedAt = e.now()
		e.metrics.RecordRun(metrics.Run{
			Loaded:      rep.Loaded,
			RowsSkipped: rep.RowsSkipped,
			Duplicates:  rep.Duplicates,
			Clusters:    rep.Clusters,
			Issues:      written,
			Inserted:    rep.ArticlesInserted,
			URLSkipped:  rep.ArticlesSkipped,
			Fallbacks:   rep.Fallbacks(),
			Duration:    rep.FinishedAt.Sub(rep.StartedAt),
			Success:     err == nil,
			End:         rep.FinishedAt,
		})
	}()

	stage := e.now()
	articles, stats := e.dedup.Dedupe(in.Articles)
	rep.Duplicates = stats.Duplicates
	e.metrics.ObserveStage("dedup", e.now().Sub(stage))
	log.Info("deduplicated", "before", stats.Input, "after", stats.Kept, "removed", stats.Duplicates)

	stage = e.now()
	docs := make([]string, len(articles))
	for i, a := range articles {
		docs[i] = e.cluster.Document(a.Title, a.Body)
	}
	res, err := e.cluster.Cluster(ctx, docs)
	if err != nil {
		return rep, fmt.Errorf("cluster: %w", err)
	}
	e.metrics.ObserveStage("cluster", e.now().Sub(stage))
	cfg := e.cluster.Config()
	top := res.Top(cfg.TopN, cfg.MinClusterSize)
	rep.Clusters = len(res.Clusters)
	rep.Unclustered = countUnclustered(res.Assignments)
	log.Info("clustered", "clusters", len(res.Clusters), "selected", len(top),
		"unclustered", rep.Unclustered, "merged", res.Merged)
	if len(top) == 0 {
		log.Warn("no cluster reached the size floor", "min_cluster_size", cfg.MinClusterSize)
		return rep, nil
	}

	stage = e.now()
	batch := persist.Batch{Topic: e.topic, RunDate: start}
	for rank, c := range top {
		// The namer sees titles in corpus order; the report lists the
		// most confident members first.
		titles := make([]string, len(c.Members))
		for i, idx := range c.Members {
			titles[i] = articles[idx].Title
		}
		members := res.Representatives(c, 0)
		tokens := make([][]string, len(members))
		for i, idx := range members {
			a := articles[idx]
			tokens[i] = e.pipeline.Keywords(a.Title + " " + a.Body)
		}
		label := e.namer.Name(ctx, titles)
		graph := e.network.Build(tokens)
		log.Info("issue named", "rank", rank+1, "label", label.Text, "count", c.Size(), "fallback", label.Fallback)

		input := persist.IssueInput{Name: label.Text, Keywords: graph.Keywords(), Edges: graph.Edges}
		for i, idx := range members {
			input.Members = append(input.Members, persist.Member{
				Article:    articles[idx],
				Keywords:   rankKeywords(tokens[i]),
				Confidence: res.Assignments[idx].Confidence,
			})
		}
		batch.Issues = append(batch.Issues, input)

		is := report.Issue{
			Rank:       rank + 1,
			Label:      label.Text,
			Fallback:   label.Fallback,
			TotalCount: c.Size(),
			Keywords:   graph.Short,
			Graph:      graph,
		}
		for _, m := range input.Members {
			if len(is.Representatives) == e.reps {
				break
			}
			is.Representatives = append(is.Representatives, report.Source{
				Title:       m.Article.Title,
				Press:       m.Article.Publisher,
				URL:         m.Article.URL,
				PublishedAt: m.Article.PublishedAt,
				Confidence:  m.Confidence,
			})
		}
		rep.Issues = append(rep.Issues, is)
	}
	e.metrics.ObserveStage("issues", e.now().Sub(stage))

	if e.writer == nil {
		log.Info("dry run, nothing persisted", "issues", len(rep.Issues))
		return rep, nil
	}
	stage = e.now()
	sum, err := e.writer.Write(ctx, batch)
	if err != nil {
		return rep, fmt.Errorf("persist: %w", err)
	}
	e.metrics.ObserveStage("persist", e.now().Sub(stage))
	for i, is := range sum.Issues {
		rep.Issues[i].ID = is.ID
		rep.Issues[i].TotalCount = is.TotalCount
	}
	written = len(sum.Issues)
	rep.ArticlesInserted = sum.ArticlesInserted
	rep.ArticlesSkipped = sum.ArticlesSkipped
	log.Info("run complete",
		"issues", len(rep.Issues),
		"articles_inserted", rep.ArticlesInserted,
		"articles_skipped", rep.ArticlesSkipped,
		"naming_fallbacks", rep.Fallbacks())
	return rep, nil
}

func countUnclustered(as []cluster.Assignment) int {
	n := 0
	for _, a := range as {
		if a.Cluster == cluster.Unclustered {
			n++
		}
	}
	return n
}

// rankKeywords orders an article's distinct keywords by occurrence count,
// ties by first appearance.
func rankKeywords(tokens []string) []string {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	out := ingest.Unique(tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return counts[out[i]] > counts[out[j]]
	})
	return out
}
