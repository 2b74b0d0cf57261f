package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ddihound/ddihound/internal/artifacts"
	"github.com/ddihound/ddihound/internal/browser"
	"github.com/ddihound/ddihound/internal/checkpoint"
	"github.com/ddihound/ddihound/internal/dataset"
	"github.com/ddihound/ddihound/internal/logger"
	"github.com/ddihound/ddihound/internal/pipeline"
	"github.com/ddihound/ddihound/internal/session"
	"github.com/ddihound/ddihound/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interaction-checking pipeline",
	Long: `Run walks the input CSV pair by pair, drives the source's
interaction checker in a browser and records each outcome.

Progress is checkpointed after every pair and the output file is
rewritten atomically every batch, so the run can be killed and resumed
and the output can be opened mid-run. Pairs already present in the
checkpoint, or rows that already carry a result, are skipped.

Examples:
  ddihound run -i pairs.csv --source drugscom
  ddihound run -i pairs.csv -o results.csv --delay 5s --jitter 2s
  ddihound run -i pairs.csv --start 200 --end 400 --headless=false`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()

	flags.StringP("input", "i", "", "work-item CSV (required)")
	flags.StringP("output", "o", "", "output CSV (default: update the input file)")
	flags.String("checkpoint", "checkpoint.csv", "checkpoint file")
	flags.String("artifacts", "artifacts", "debug artifact directory (empty to disable)")
	flags.String("log-file", "", "also append log events to this file")
	flags.StringP("source", "s", "drugscom", "interaction checker to use")

	flags.Int("start", 0, "first queue index to process")
	flags.Int("end", 0, "stop before this queue index (0 = end of file)")

	flags.Duration("delay", 2*time.Second, "minimum delay between interactions (floor: 2s)")
	flags.Duration("jitter", 3*time.Second, "random extra delay added to each wait")
	flags.Duration("stable-wait", 20*time.Second, "ceiling for the result page to settle")
	flags.Duration("step-timeout", 30*time.Second, "ceiling per browser step")

	flags.Int("batch", 10, "items per output snapshot")
	flags.Bool("headless", true, "run the browser headless")

	_ = runCmd.MarkFlagRequired("input")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	logFile, _ := flags.GetString("log-file")
	if err := logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		File:  logFile,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	cfg := pipeline.Config{LogFile: logFile}
	cfg.Source, _ = flags.GetString("source")
	cfg.InputPath, _ = flags.GetString("input")
	cfg.OutputPath, _ = flags.GetString("output")
	cfg.CheckpointPath, _ = flags.GetString("checkpoint")
	cfg.ArtifactDir, _ = flags.GetString("artifacts")
	cfg.RangeStart, _ = flags.GetInt("start")
	cfg.RangeEnd, _ = flags.GetInt("end")
	cfg.MinDelay, _ = flags.GetDuration("delay")
	cfg.Jitter, _ = flags.GetDuration("jitter")
	cfg.StableWait, _ = flags.GetDuration("stable-wait")
	cfg.StepTimeout, _ = flags.GetDuration("step-timeout")
	cfg.BatchSize, _ = flags.GetInt("batch")
	cfg.Headless, _ = flags.GetBool("headless")

	if cfg.OutputPath == "" {
		cfg.OutputPath = cfg.InputPath
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration rejected", "error", err)
		return err
	}

	profile, err := source.ByName(cfg.Source)
	if err != nil {
		logger.Error("unknown source", "error", err)
		return err
	}

	table, err := dataset.Load(cfg.InputPath)
	if err != nil {
		logger.Error("failed to load work items", "path", cfg.InputPath, "error", err)
		return err
	}

	store, err := checkpoint.Open(cfg.CheckpointPath)
	if err != nil {
		logger.Error("failed to open checkpoint", "path", cfg.CheckpointPath, "error", err)
		return err
	}
	defer func() { _ = store.Close() }()

	var art *artifacts.Writer
	if cfg.ArtifactDir != "" {
		art, err = artifacts.NewWriter(cfg.ArtifactDir)
		if err != nil {
			logger.Error("failed to prepare artifact directory", "dir", cfg.ArtifactDir, "error", err)
			return err
		}
	}

	br, err := browser.NewChrome(browser.Config{
		Headless:    cfg.Headless,
		StepTimeout: cfg.StepTimeout,
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		return err
	}
	defer func() { _ = br.Close() }()

	sess := session.New(br, profile, session.Options{StableWait: cfg.StableWait})
	limiter := pipeline.NewLimiter(cfg.MinDelay, cfg.Jitter)
	driver := pipeline.NewDriver(cfg, table, store, limiter, sess, art, profile)

	// SIGINT/SIGTERM stop the run gracefully at the next item boundary.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := driver.Run(ctx); err != nil {
		logger.Error("run aborted", "error", err)
		return err
	}
	return nil
}
