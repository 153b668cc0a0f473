package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spacemake-go/mapplan/internal/config"
	"github.com/spacemake-go/mapplan/internal/executor"
	"github.com/spacemake-go/mapplan/internal/logging"
	"github.com/spacemake-go/mapplan/internal/scheduler"
	"github.com/spacemake-go/mapplan/internal/server"
	"github.com/spacemake-go/mapplan/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServerConfig()
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the planner's REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				cfg.LogLevel = "debug"
			}
			return RunServe(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.mapplan/mapplan.db)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug")

	return cmd
}

// RunServe wires and runs the planner server to completion (blocking until
// the process receives SIGINT/SIGTERM). It is the body of both `map-planner
// serve` and the standalone server binary.
func RunServe(cfg config.ServerConfig) error {
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".mapplan")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "mapplan.db")
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "path", dbPath)

	reg := executor.NewRegistry(logger)
	reg.Register(executor.NewLocalExecutor("", logger))
	reg.Register(executor.NewDockerExecutor("", logger))

	sched := scheduler.NewLoop(st, reg, scheduler.DefaultConfig(), logger)

	srv := server.New(cfg, st, sched, logger, server.WithExecutorRegistry(reg))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	ctx, stop := notifyShutdown()
	defer stop()

	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
