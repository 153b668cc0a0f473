package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spacemake-go/mapplan/internal/config"
	"github.com/spacemake-go/mapplan/internal/executor"
	"github.com/spacemake-go/mapplan/internal/logging"
	"github.com/spacemake-go/mapplan/internal/refstage"
	"github.com/spacemake-go/mapplan/internal/worker"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	cfg := config.DefaultWorkerConfig()
	var pollSeconds int
	var executorType string
	var indexUploadPrefix string
	var debug bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the dispatch worker agent",
		Long:  "Polls the planner server for queued dispatch tasks, stages reference artifacts, runs the mapper commands, and reports results back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				cfg.LogLevel = "debug"
			}
			return RunWorker(cfg, time.Duration(pollSeconds)*time.Second, executorType, indexUploadPrefix)
		},
	}

	cmd.Flags().StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "Planner server URL")
	cmd.Flags().StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Scratch directory for staged references and mapper output")
	cmd.Flags().IntVar(&pollSeconds, "poll", 5, "Poll interval in seconds")
	cmd.Flags().StringVar(&executorType, "executor-type", "local", "Executor type this worker runs (local, container)")
	cmd.Flags().StringVar(&indexUploadPrefix, "index-upload-prefix", "", "s3:// prefix a built index directory is uploaded to after an index_build task (empty uses s3://<s3-bucket>/index-cache when --s3-bucket is set, otherwise disables upload)")
	cmd.Flags().StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket whose index-cache prefix receives built indices when --index-upload-prefix is empty")
	cmd.Flags().StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for reference staging")
	cmd.Flags().StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3-compatible endpoint override")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug")

	return cmd
}

// RunWorker wires and runs the dispatch worker to completion. It is the
// body of both `map-planner worker` and the standalone worker binary.
func RunWorker(cfg config.WorkerConfig, poll time.Duration, executorType, indexUploadPrefix string) error {
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := notifyShutdown()
	defer stop()

	scratchDir := cfg.WorkDir
	if scratchDir == "" {
		scratchDir = "/tmp/mapplan-worker"
	}
	stager, err := refstage.New(ctx, refstage.Config{
		ScratchDir: scratchDir,
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
	}, logger)
	if err != nil {
		return fmt.Errorf("init reference stager: %w", err)
	}

	if indexUploadPrefix == "" && cfg.S3Bucket != "" {
		indexUploadPrefix = "s3://" + cfg.S3Bucket + "/index-cache"
	}

	var exec executor.Executor
	switch executorType {
	case "container":
		exec = executor.NewDockerExecutor(scratchDir, logger)
	default:
		exec = executor.NewLocalExecutor(scratchDir, logger)
	}

	w, err := worker.New(worker.Config{
		ServerURL:         cfg.ServerAddr,
		WorkDir:           scratchDir,
		ExecutorType:      exec.Type(),
		Poll:              poll,
		IndexUploadPrefix: indexUploadPrefix,
	}, exec, stager, logger)
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	logger.Info("starting worker", "server", cfg.ServerAddr, "executor_type", exec.Type(), "workdir", scratchDir, "poll", poll)

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("worker error: %w", err)
	}

	logger.Info("worker stopped")
	return nil
}
