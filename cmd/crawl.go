package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/pipeline"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetches feeds and documents into the record store",
	}
	cmd.AddCommand(
		newCrawlAllCmd(),
		newCrawlParliamentCmd(),
		newCrawlDocumentsCmd(),
		newCrawlStageCmd(),
	)
	return cmd
}

func newCrawlAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Runs every stage for every parliamentary term",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.GetCrawler().All(cmd.Context())
		},
	}
}

func newCrawlParliamentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parliament <id>",
		Short: "Refreshes one term and fills in its missing meeting, vote and registration detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.GetCrawler().Parliament(cmd.Context(), id)
		},
	}
}

func newCrawlDocumentsCmd() *cobra.Command {
	var parliament string
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Downloads and converts meeting protocols and stenograms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if parliament == "" {
				return a.GetCrawler().AllDocuments(cmd.Context())
			}
			id, err := parseID(parliament)
			if err != nil {
				return err
			}
			return a.GetCrawler().Documents(cmd.Context(), id)
		},
	}
	cmd.Flags().StringVar(&parliament, "parliament", "", "limit to one parliamentary term id")
	return cmd
}

func newCrawlStageCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:       "stage <name>",
		Short:     "Runs a single stage: " + strings.Join(pipeline.Stages, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: pipeline.Stages,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pipeline.ParseMode(mode)
			if err != nil {
				return err
			}
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			a.GetLogger().Info("running stage", zap.String("stage", args[0]), zap.Stringer("mode", m))
			return a.GetCrawler().Stage(cmd.Context(), args[0], m)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "full", "full refetches every id, missing only ids without detail rows")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.Migrate(cmd.Context())
		},
	}
}

func parseID(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return int32(n), nil
}
