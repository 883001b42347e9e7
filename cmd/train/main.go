package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matthewcarbone/multimodal-molecules/internal/config"
	"github.com/matthewcarbone/multimodal-molecules/internal/experiment"
	"github.com/matthewcarbone/multimodal-molecules/internal/jobs"
	"github.com/matthewcarbone/multimodal-molecules/internal/logging"
	"github.com/matthewcarbone/multimodal-molecules/internal/persistence"
	"github.com/matthewcarbone/multimodal-molecules/internal/validation"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg     *config.Config
	logger  *zap.Logger
	manager = jobs.NewManager()
)

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Functional group classification experiments on multimodal XANES data",
	Long: `train selects molecules from an index table by condition, trains one
classifier per combination of spectral modalities and functional group, and
writes a JSON report next to a store of the trained models.

Use "validate" to check that a saved report is reproduced by its models.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			return
		}
		for _, job := range manager.List() {
			snap := job.Snapshot()
			logger.Debug("job",
				zap.String("id", snap.ID),
				zap.String("kind", string(snap.Kind)),
				zap.String("subject", snap.Subject),
				zap.String("status", string(snap.Status)),
				zap.Float64("progress", snap.Progress()),
				zap.Duration("elapsed", snap.Elapsed))
		}
		_ = logger.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every experiment the conditions select",
	Example: `  train run --conditions C-XANES,N-XANES,O-XANES --input data/221205 --output results
  train run --config config.yaml --debug 5 --no-importance`,
	RunE: runExperiments,
}

var validateCmd = &cobra.Command{
	Use:   "validate REPORT",
	Short: "Recompute a saved report from its models and data",
	Args:  cobra.ExactArgs(1),
	RunE:  validateReport,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringP("input", "i", "", "Directory holding the spectra and index files")

	runCmd.Flags().String("conditions", "", "Comma-separated conditions, e.g. C-XANES,!N")
	runCmd.Flags().StringP("output", "o", "", "Directory for the report and models (empty keeps results in memory)")
	runCmd.Flags().Int("workers", 0, "Parallel workers for training and permutation importance")
	runCmd.Flags().Int("debug", 0, "Stop after this many trained models")
	runCmd.Flags().Bool("no-importance", false, "Skip feature importances")
	runCmd.Flags().Float64("test-size", 0, "Fraction of rows held out for testing")
	runCmd.Flags().Int64("seed", 0, "Random seed for the split and the forest")
	runCmd.Flags().Int("trees", 0, "Trees per forest")
	runCmd.Flags().String("summary-csv", "", "Also write a CSV summary of the records to this file")

	rootCmd.AddCommand(runCmd, validateCmd)
}

// applyFlags copies every flag the user set over the loaded configuration.
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("input", func() (e error) { cfg.InputDir, e = flags.GetString("input"); return })
	set("conditions", func() (e error) { cfg.Experiment.Conditions, e = flags.GetString("conditions"); return })
	set("output", func() (e error) { cfg.OutputDir, e = flags.GetString("output"); return })
	set("workers", func() (e error) { cfg.Run.Workers, e = flags.GetInt("workers"); return })
	set("debug", func() (e error) { cfg.Run.Debug, e = flags.GetInt("debug"); return })
	set("test-size", func() (e error) { cfg.Experiment.TestSize, e = flags.GetFloat64("test-size"); return })
	set("seed", func() (e error) { cfg.Experiment.Seed, e = flags.GetInt64("seed"); return })
	set("trees", func() (e error) { cfg.Forest.NTrees, e = flags.GetInt("trees"); return })
	set("no-importance", func() error {
		skip, e := flags.GetBool("no-importance")
		cfg.Run.ComputeFeatureImportance = !skip
		return e
	})
	return err
}

func runExperiments(cmd *cobra.Command, args []string) error {
	if err := applyFlags(cmd); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fs := afero.NewOsFs()
	binder := experiment.NewBinder(fs, cfg.InputDir, logger)
	defer binder.Reset()

	session, err := binder.Bind(cfg.Experiment)
	if err != nil {
		return err
	}

	job := manager.Create(jobs.KindRun, session.Settings().Conditions)
	runner := experiment.NewRunner(cfg.Options(), logger)
	runner.Job = job

	result, runErr := runner.Run(cmd.Context(), session)
	printRunSummary(result, job.Snapshot())
	if runErr != nil {
		return runErr
	}

	artifacts, err := persistence.NewStore(fs, cfg.OutputDir, logger).Save(result)
	if err != nil {
		return err
	}
	printArtifacts(artifacts)

	if path, _ := cmd.Flags().GetString("summary-csv"); path != "" {
		f, err := fs.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create summary: %w", err)
		}
		defer f.Close()
		if err := experiment.ExportSummary(result.Report, f); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		fmt.Printf("Summary saved to: %s\n", path)
	}
	return nil
}

func validateReport(cmd *cobra.Command, args []string) error {
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		cfg.InputDir = input
	}

	fs := afero.NewOsFs()
	binder := experiment.NewBinder(fs, cfg.InputDir, logger)
	defer binder.Reset()

	validator := validation.New(binder, persistence.NewStore(fs, "", logger), logger)
	validator.Progress = true
	validator.Job = manager.Create(jobs.KindValidate, args[0])

	summary, err := validator.Validate(args[0])
	printValidation(args[0], summary, validator.Job.Snapshot())
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
