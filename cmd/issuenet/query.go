package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aigent/issuenet/pkg/issuenet/query"
)

// withService opens the store, runs fn against a query service, and
// prints its result as JSON.
func (a *app) withService(cmd *cobra.Command, fn func(context.Context, *query.Service) (any, error)) error {
	ctx := cmd.Context()
	st, err := a.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	out, err := fn(ctx, query.NewService(st))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func newIssuesCmd(a *app) *cobra.Command {
	var top, recent int
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List stored issues by size or recency",
		Example: `  issuenet issues --top 10
  issuenet issues --recent 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *query.Service) (any, error) {
				if recent > 0 {
					return svc.RecentIssues(ctx, recent)
				}
				return svc.TopIssues(ctx, top)
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "largest issues to list")
	cmd.Flags().IntVar(&recent, "recent", 0, "most recent issues to list instead")
	return cmd
}

func newArticlesCmd(a *app) *cobra.Command {
	var (
		issueID int64
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "articles",
		Short:   "List the articles of an issue, newest first",
		Example: "  issuenet articles --issue 3 --limit 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.IssueArticles(ctx, issueID, limit)
			})
		},
	}
	cmd.Flags().Int64Var(&issueID, "issue", 0, "issue id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum articles (0 for all)")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func newGraphCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:     "graph",
		Short:   "Merged keyword network of the largest issues",
		Example: "  issuenet graph --top 5",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.TrendGraph(ctx, top)
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "issues to merge")
	return cmd
}

func newEgoCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "ego KEYWORD",
		Short:   "Keywords co-occurring with KEYWORD",
		Example: "  issuenet ego 탄핵 --limit 15",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.EgoNetwork(ctx, args[0], limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "neighbours to return")
	return cmd
}

func newMentionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "mentions KEYWORD",
		Short:   "Daily co-occurrence volume of KEYWORD",
		Example: "  issuenet mentions 예산안",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *query.Service) (any, error) {
				return svc.MentionSeries(ctx, args[0])
			})
		},
	}
}
