package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aigent/issuenet/internal/logging"
	"github.com/aigent/issuenet/pkg/issuenet/config"
	"github.com/aigent/issuenet/pkg/issuenet/store"
	"github.com/aigent/issuenet/pkg/issuenet/store/memstore"
	"github.com/aigent/issuenet/pkg/issuenet/store/postgres"
	"github.com/aigent/issuenet/pkg/issuenet/store/sqlite"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	cfgFile  string
	logLevel string
	cfg      config.Config
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "issuenet",
		Short: "Political news issue clustering and keyword networks",
		Long: `issuenet groups a day's political news into issues, names them, and
stores each issue's keyword co-occurrence network.

Example usage:
  issuenet run --input articles.csv             # Cluster and persist a corpus
  issuenet run --input articles.csv --dry-run   # Cluster without writing
  issuenet issues --top 10                      # Largest stored issues
  issuenet graph --top 5                        # Merged keyword network
  issuenet ego 탄핵                              # Neighbours of a keyword`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(a),
		newIssuesCmd(a),
		newArticlesCmd(a),
		newGraphCmd(a),
		newEgoCmd(a),
		newMentionsCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	a.logger.Debug("configuration loaded",
		"store_driver", cfg.Store.Driver,
		"naming_provider", cfg.Naming.Provider,
		"embedder", cfg.Cluster.Embedder)
	return nil
}

// openStore opens the configured backend.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store.Driver {
	case "sqlite":
		return sqlite.OpenSQLite(ctx, a.cfg.Store.DSN)
	case "postgres":
		return postgres.Open(ctx, a.cfg.Store.DSN)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
