package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aigent/issuenet/internal/llm"
	"github.com/aigent/issuenet/pkg/issuenet"
	"github.com/aigent/issuenet/pkg/issuenet/cluster"
	"github.com/aigent/issuenet/pkg/issuenet/corpus"
	"github.com/aigent/issuenet/pkg/issuenet/dedup"
	"github.com/aigent/issuenet/pkg/issuenet/metrics"
	"github.com/aigent/issuenet/pkg/issuenet/naming"
	"github.com/aigent/issuenet/pkg/issuenet/network"
	"github.com/aigent/issuenet/pkg/issuenet/persist"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		input      string
		reportPath string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cluster a corpus into issues and persist them",
		Long: `Load a corpus file, drop near-duplicates, cluster the rest into issues,
name each issue, build its keyword network, and write everything in one
transaction.

Examples:
  issuenet run --input articles.csv
  issuenet run --input articles.jsonl --report top_issues.csv
  issuenet run --input articles.csv --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reportPath == "" {
				reportPath = a.cfg.Report.Path
			}
			return a.run(cmd.Context(), input, reportPath, dryRun)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "corpus file (.csv or .jsonl)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the ranked-issue CSV here")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "cluster and name without writing to the store")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) run(ctx context.Context, input, reportPath string, dryRun bool) (err error) {
	opts, err := a.cfg.CorpusOptions()
	if err != nil {
		return err
	}
	loaded, err := corpus.Load(input, opts)
	if err != nil {
		return err
	}

	rec := metrics.New()
	engine, cleanup, err := a.buildEngine(ctx, rec, dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	defer func() {
		if a.cfg.Metrics.Textfile == "" {
			return
		}
		if werr := rec.WriteTextfile(a.cfg.Metrics.Textfile); werr != nil {
			a.logger.Error("write metrics textfile", "path", a.cfg.Metrics.Textfile, "err", werr)
		}
	}()

	rep, err := engine.Run(ctx, loaded)
	if err != nil {
		var ie *persist.IssueError
		if errors.As(err, &ie) {
			return fmt.Errorf("run %s failed at issue %d (%s): %w", rep.RunID, ie.Index, ie.Name, ie.Err)
		}
		return fmt.Errorf("run %s: %w", rep.RunID, err)
	}
	if reportPath != "" {
		if err := rep.WriteFile(reportPath); err != nil {
			return err
		}
		a.logger.Info("report written", "path", reportPath, "issues", len(rep.Issues))
	}
	return nil
}

// buildEngine wires the pipeline components from the loaded configuration.
func (a *app) buildEngine(ctx context.Context, rec *metrics.Recorder, dryRun bool) (*issuenet.Engine, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				a.logger.Warn("cleanup", "err", err)
			}
		}
	}

	pipeline, err := a.cfg.Pipeline()
	if err != nil {
		return nil, nil, err
	}

	var embedder cluster.Embedder
	switch a.cfg.Cluster.Embedder {
	case "gemini":
		ge, err := llm.NewGeminiEmbedder(ctx, a.cfg.GeminiAPIKey, "")
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, ge.Close)
		embedder = ge
	default:
		embedder = cluster.TFIDFEmbedder{MaxFeatures: a.cfg.Cluster.MaxFeatures, Analyzer: pipeline.Analyzer()}
	}

	gen, closeGen, err := newGenerator(ctx, a.cfg.Naming, a.logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeGen != nil {
		closers = append(closers, closeGen)
	}

	var writer *persist.Writer
	if !dryRun {
		st, err := a.openStore(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		closers = append(closers, st.Close)
		writer = persist.New(st, a.cfg.Persist, a.logger)
	}

	engine := issuenet.New(issuenet.Options{
		Dedup:           dedup.New(a.cfg.Dedup),
		Cluster:         cluster.New(a.cfg.Cluster, embedder, a.logger),
		Namer:           naming.New(gen, a.cfg.Naming, a.logger),
		Network:         network.NewBuilder(a.cfg.Network),
		Pipeline:        pipeline,
		Writer:          writer,
		Metrics:         rec,
		Logger:          a.logger,
		Topic:           a.cfg.Persist.Topic,
		Representatives: a.cfg.Report.Representatives,
	})
	return engine, cleanup, nil
}

// newGenerator returns the naming backend for cfg.Provider. "none" or a
// missing key yields a nil generator, so every issue takes its first
// headline as the label.
func newGenerator(ctx context.Context, cfg naming.Config, logger *slog.Logger) (naming.Generator, func() error, error) {
	if cfg.Provider != "none" && cfg.APIKey == "" && cfg.BaseURL == "" {
		logger.Warn("no API key for naming provider, issues will be named by headline", "provider", cfg.Provider)
		return nil, nil, nil
	}
	switch cfg.Provider {
	case "gemini":
		g, err := llm.NewGemini(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case "openai":
		model := cfg.Model
		if model == "" || model == naming.DefaultConfig().Model {
			model = "gpt-4o-mini"
		}
		return &llm.OpenAI{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: model}, nil, nil
	default:
		return nil, nil, nil
	}
}
