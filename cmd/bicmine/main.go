package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/bicmine/internal/config"
	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/ingestion"
	"github.com/rohankatakam/bicmine/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	input   string
	repo    string
	limit   int

	ambiguity string

	logger *logrus.Logger
	cfg    *config.Config
	appLog *logging.Logger
)

func main() {
	err := rootCmd.Execute()
	if err != nil && logger != nil {
		logger.WithFields(errors.Fields(err)).Debug("Command failed")
	}
	if appLog != nil {
		appLog.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "bicmine",
	Short: "bicmine - link fix commits to the commits they fix",
	Long: `bicmine reads a commit log, finds "Fixes: <hash>" declarations and
measures how many commits and how much time separate each fix from the
commit it repairs.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		logCfg := logging.Config{
			Level:      cfg.Log.Level,
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.JSON,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		appLog, err = logging.New(logCfg)
		if err != nil {
			return err
		}
		logger = appLog.Logger
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./bicmine.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&input, "input", "i", "", "commit log in JSON Lines (.gz and .zst accepted)")
	rootCmd.PersistentFlags().StringVar(&repo, "repo", "", "read commits from a git repository (path or URL) instead")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0, "stop after this many records (0 = all)")
	rootCmd.PersistentFlags().StringVar(&ambiguity, "ambiguity", "", "shared prefix policy: last-wins or reject")

	rootCmd.SetVersionTemplate(`bicmine {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(pathCmd)
}

// applyFlags lets explicitly set flags win over file and environment values
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = input
	}
	if flags.Changed("repo") {
		cfg.Repo = repo
	}
	if flags.Changed("limit") {
		cfg.Limit = limit
	}
	if flags.Changed("output") {
		cfg.Output = outputPath
	}
	if flags.Changed("summary") {
		cfg.SummaryFile = summaryFile
	}
	if flags.Changed("max-hops") {
		cfg.Path.MaxHops = maxHops
	}
	if flags.Changed("max-frontier") {
		cfg.Path.MaxFrontier = maxFrontier
	}
	if flags.Changed("ambiguity") {
		cfg.Index.Ambiguity = ambiguity
	}
}

func miningOptions(c *config.Config) ingestion.Options {
	return ingestion.Options{
		Input:       c.Input,
		Repo:        c.Repo,
		CloneDir:    c.CloneDir,
		Output:      c.Output,
		SummaryFile: c.SummaryFile,
		Limit:       c.Limit,
		Index: graph.IndexOptions{
			Tiers:     c.Index.Tiers,
			Ambiguity: graph.AmbiguityPolicy(c.Index.Ambiguity),
		},
		MaxHops:     c.Path.MaxHops,
		MaxFrontier: c.Path.MaxFrontier,
	}
}
