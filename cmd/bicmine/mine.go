package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/bicmine/internal/config"
	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/ingestion"
	"github.com/rohankatakam/bicmine/internal/output"
	"github.com/rohankatakam/bicmine/internal/storage"
	"github.com/rohankatakam/bicmine/internal/validation"
)

var (
	outputPath  string
	summaryFile string
	maxHops     int
	maxFrontier int
	format      string
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Annotate every commit with the commit it fixes",
	Long: `Load the commit log, resolve each "Fixes:" declaration to a known commit
and write one row per commit with the fixed commit, the number of commits
between them and the elapsed seconds.

Examples:
  # Plain run
  bicmine mine -i commits.json.gz -o fixes.csv

  # Also store the rows in SQLite and print a YAML summary
  BICMINE_SINKS_SQL_DSN=fixes.db bicmine mine -i commits.json --summary run.yaml`,
	RunE: runMine,
}

func init() {
	mineCmd.Flags().StringVarP(&outputPath, "output", "o", "", "fixes table path (default: fixes.csv)")
	mineCmd.Flags().StringVar(&summaryFile, "summary", "", "write the run summary as YAML")
	mineCmd.Flags().IntVar(&maxHops, "max-hops", 0, "stop ancestor searches after this many hops (0 = unlimited)")
	mineCmd.Flags().IntVar(&maxFrontier, "max-frontier", 0, "stop ancestor searches whose frontier grows beyond this (0 = unlimited)")
	mineCmd.Flags().StringVar(&format, "format", "", "summary format: quiet, standard or json (default depends on environment)")
}

func runMine(cmd *cobra.Command, args []string) error {
	result := cfg.ValidateFor(config.ValidationContextMine)
	for _, warn := range result.Warnings {
		logger.Warn(warn)
	}
	if err := result.Err(); err != nil {
		return err
	}

	level := output.GetDefaultVerbosity()
	if format != "" {
		var err error
		if level, err = output.ParseVerbosity(format); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := storage.NewRunID()
	sinks, err := openSinks(ctx, cfg, runID)
	if err != nil {
		return err
	}

	progress := output.NewProgress(os.Stderr, logger)
	opts := miningOptions(cfg)
	opts.RunID = runID

	res, err := ingestion.NewOrchestrator(logger, sinks, progress).Mine(ctx, opts)
	progress.Stop()
	if err == nil {
		checkSinks(ctx, sinks, res)
	}
	if cerr := sinks.Close(context.Background()); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.IsFatal(err) {
			logger.WithField("output", opts.Output).Warn("Mining aborted, the fixes table is incomplete")
		}
		return err
	}

	return output.NewFormatter(level).Format(res.Summary, cmd.OutOrStdout())
}

// checkSinks compares the fixes held by each sink with the run counters.
// A mismatch is logged, it does not fail the run.
func checkSinks(ctx context.Context, sinks *storage.Multi, res *ingestion.MiningResult) {
	stores := sinks.FixCounters()
	if len(stores) == 0 {
		return
	}
	v := validation.NewConsistencyValidator(logger, stores...)
	results, err := v.ValidateRun(ctx, res.RunID, res.Counters)
	if err != nil {
		logger.WithError(err).Warn("Sink consistency check failed")
		return
	}
	v.LogResults(res.RunID, results)
}

// openSinks connects every configured sink; on failure the ones already
// opened are closed
func openSinks(ctx context.Context, c *config.Config, runID string) (*storage.Multi, error) {
	var opened []storage.Sink
	fail := func(err error) (*storage.Multi, error) {
		storage.NewMulti(opened...).Close(context.Background())
		return nil, err
	}

	if c.Sinks.SQL.Enabled() {
		s, err := storage.NewSQLSink(ctx, storage.SQLOptions{
			Driver:    c.Sinks.SQL.Driver,
			DSN:       c.Sinks.SQL.DSN,
			RunID:     runID,
			BatchSize: c.Sinks.SQL.BatchSize,
		}, logger)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, s)
	}

	if c.Sinks.Bolt.Enabled() {
		s, err := storage.NewBoltSink(c.Sinks.Bolt.Path, runID, c.Sinks.Bolt.BatchSize, logger)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, s)
	}

	if c.Sinks.Neo4j.Enabled() {
		s, err := storage.NewNeo4jSink(ctx, storage.Neo4jOptions{
			URI:       c.Sinks.Neo4j.URI,
			Username:  c.Sinks.Neo4j.Username,
			Password:  c.Sinks.Neo4j.Password,
			Database:  c.Sinks.Neo4j.Database,
			RunID:     runID,
			BatchSize: c.Sinks.Neo4j.BatchSize,
		}, logger)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, s)
	}

	if len(opened) > 0 {
		logger.WithField("sinks", len(opened)).Info("Result sinks connected")
	}
	return storage.NewMulti(opened...), nil
}
