package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/bicmine/internal/config"
	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/ingestion"
	"github.com/rohankatakam/bicmine/internal/models"
	"github.com/rohankatakam/bicmine/internal/output"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <prefix>...",
	Short: "Resolve abbreviated commit ids against the commit log",
	Long: `Load the commit log and print the commit each prefix resolves to.
Prefixes shorter than the smallest index tier, unknown prefixes and
(with --ambiguity reject) shared prefixes are reported as not found.

Examples:
  bicmine resolve -i commits.json 1a2b3c4 1a2b3c4d5e`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tCOMMIT\tDATE\tSTATUS")
	for _, prefix := range args {
		c, err := idx.Resolve(prefix)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\n", prefix, resolveStatus(err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\tok\n", prefix, c.ID, c.Date.Format(output.DateLayout))
	}
	return tw.Flush()
}

func resolveStatus(err error) string {
	switch {
	case errors.Is(err, graph.ErrIdentifierTooShort):
		return "too short"
	case errors.Is(err, graph.ErrIdentifierAmbiguous):
		return "ambiguous"
	case errors.Is(err, graph.ErrIdentifierNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

// loadIndex validates the source settings and builds a sealed index
func loadIndex(ctx context.Context) (*graph.Index, error) {
	result := cfg.ValidateFor(config.ValidationContextQuery)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var counters models.Counters
	orch := ingestion.NewOrchestrator(logger, nil, nil)
	return orch.LoadIndex(ctx, miningOptions(cfg), &counters)
}
