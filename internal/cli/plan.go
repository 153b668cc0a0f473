package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var sampleTablePath string
	var registryPath string
	var defaultStrategy string
	var finalToken string
	var executorType string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Register a sample table and reference registry, then build a plan",
		Long:  "Registers a sample table and reference registry with the server and builds a dispatchable plan from them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tableDoc, err := os.ReadFile(sampleTablePath)
			if err != nil {
				return fmt.Errorf("read sample table: %w", err)
			}
			registryDoc, err := os.ReadFile(registryPath)
			if err != nil {
				return fmt.Errorf("read reference registry: %w", err)
			}

			logger.Info("registering sample table", "path", sampleTablePath, "size", humanize.Bytes(uint64(len(tableDoc))))
			tableResp, err := client.PostRaw("/api/v1/sample-tables", tableDoc)
			if err != nil {
				return fmt.Errorf("register sample table: %w", err)
			}
			var tableData struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(tableResp.Data, &tableData); err != nil {
				return fmt.Errorf("parse sample table response: %w", err)
			}
			fmt.Printf("Sample table registered: %s\n", tableData.ID)

			logger.Info("registering reference registry", "path", registryPath, "size", humanize.Bytes(uint64(len(registryDoc))))
			registryResp, err := client.PostRaw("/api/v1/reference-registries", registryDoc)
			if err != nil {
				return fmt.Errorf("register reference registry: %w", err)
			}
			var registryData struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(registryResp.Data, &registryData); err != nil {
				return fmt.Errorf("parse reference registry response: %w", err)
			}
			fmt.Printf("Reference registry registered: %s\n", registryData.ID)

			planReq := map[string]any{
				"sample_table_id":       tableData.ID,
				"reference_registry_id": registryData.ID,
				"default_strategy":      defaultStrategy,
				"final_token":           finalToken,
				"executor_type":         executorType,
			}
			start := time.Now()
			planResp, err := client.Post("/api/v1/plans", planReq)
			if err != nil {
				return fmt.Errorf("build plan: %w", err)
			}

			var run struct {
				ID           string   `json:"id"`
				SampleCount  int      `json:"sample_count"`
				FailedCount  int      `json:"failed_count"`
				FinalOutputs []string `json:"final_outputs"`
			}
			if err := json.Unmarshal(planResp.Data, &run); err != nil {
				return fmt.Errorf("parse plan response: %w", err)
			}

			fmt.Printf("Plan run: %s\n", run.ID)
			fmt.Printf("  Samples: %s planned, %s failed (%s)\n",
				humanize.Comma(int64(run.SampleCount)), humanize.Comma(int64(run.FailedCount)), time.Since(start).Round(time.Millisecond))
			fmt.Printf("  Final outputs: %d\n", len(run.FinalOutputs))
			for _, out := range run.FinalOutputs {
				fmt.Printf("    - %s\n", out)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sampleTablePath, "sample-table", "", "Path to sample table YAML (required)")
	cmd.Flags().StringVar(&registryPath, "registry", "", "Path to reference registry YAML (required)")
	cmd.Flags().StringVar(&defaultStrategy, "default-strategy", "", "Mapping strategy applied to rows without their own strategy")
	cmd.Flags().StringVar(&finalToken, "final-token", "", "Final artifact token (default \"final\")")
	cmd.Flags().StringVar(&executorType, "executor-type", "local", "Executor type for generated dispatch tasks (local, container)")
	cmd.MarkFlagRequired("sample-table")
	cmd.MarkFlagRequired("registry")

	return cmd
}
