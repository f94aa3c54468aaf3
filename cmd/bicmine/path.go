package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/models"
)

var pathCmd = &cobra.Command{
	Use:   "path <descendant> <ancestor>",
	Short: "Measure the ancestor path between two commits",
	Long: `Load the commit log and print the number of parent hops from the
descendant to the ancestor, with the search statistics. Both arguments
may be abbreviated ids.

Examples:
  bicmine path -i commits.json 9f8e7d6c5b 1a2b3c4`,
	Args: cobra.ExactArgs(2),
	RunE: runPath,
}

func init() {
	pathCmd.Flags().IntVar(&maxHops, "max-hops", 0, "stop the search after this many hops (0 = unlimited)")
	pathCmd.Flags().IntVar(&maxFrontier, "max-frontier", 0, "stop the search when the frontier grows beyond this (0 = unlimited)")
}

func runPath(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}

	descendant, err := idx.Resolve(args[0])
	if err != nil {
		return fmt.Errorf("descendant %s: %w", args[0], err)
	}
	ancestor, err := idx.Resolve(args[1])
	if err != nil {
		return fmt.Errorf("ancestor %s: %w", args[1], err)
	}

	resolver := graph.NewPathResolver(idx)
	resolver.MaxHops = cfg.Path.MaxHops
	resolver.MaxFrontier = cfg.Path.MaxFrontier

	res, err := resolver.PathLength(descendant, ancestor)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", descendant.ID, ancestor.ID)
	switch {
	case err == nil:
		fmt.Fprintf(out, "  Commits:      %d\n", res.Length)
		fmt.Fprintf(out, "  Elapsed:      %ds\n", models.ElapsedSeconds(descendant.Date, ancestor.Date))
	case errors.Is(err, graph.ErrSearchCapped):
		fmt.Fprintf(out, "  No path: search limit reached at hop %d\n", res.Length)
	case errors.Is(err, graph.ErrNoPath):
		fmt.Fprintf(out, "  No path: %v\n", err)
	default:
		return err
	}
	fmt.Fprintf(out, "  Max frontier: %d\n", res.MaxFrontier)
	fmt.Fprintf(out, "  Max pruned:   %d\n", res.MaxPruned)
	fmt.Fprintf(out, "  Visited:      %d\n", res.Visited)
	return nil
}
