package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spacemake-go/mapplan/internal/cli"
	"github.com/spacemake-go/mapplan/internal/config"
)

func main() {
	cfg := config.DefaultWorkerConfig()
	var executorType string
	var indexUploadPrefix string
	var pollSeconds int

	flag.StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "Planner server URL")
	flag.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Scratch directory for staged references and mapper output")
	flag.IntVar(&pollSeconds, "poll", 5, "Poll interval in seconds")
	flag.StringVar(&executorType, "executor-type", "local", "Executor type this worker runs (local, container)")
	flag.StringVar(&indexUploadPrefix, "index-upload-prefix", "", "s3:// prefix a built index directory is uploaded to after an index_build task")
	flag.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket whose index-cache prefix receives built indices when -index-upload-prefix is empty")
	flag.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for reference staging")
	flag.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3-compatible endpoint override")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	if err := cli.RunWorker(cfg, time.Duration(pollSeconds)*time.Second, executorType, indexUploadPrefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
