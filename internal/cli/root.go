package cli

import (
	"log/slog"
	"os"

	"github.com/spacemake-go/mapplan/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking MAPPLAN_SERVER
// env var first.
func defaultServer() string {
	if s := os.Getenv("MAPPLAN_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the map-planner CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "map-planner",
		Short: "map-planner — mapping-strategy planner for spatial-transcriptomics pipelines",
		Long:  "map-planner builds, serves, and dispatches per-sample alignment plans for spatial-transcriptomics sequencing pipelines.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Planner server URL (or MAPPLAN_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newPlanCmd(),
		newValidateStrategyCmd(),
		newStatusCmd(),
		newServeCmd(),
		newWorkerCmd(),
	)

	return root
}
