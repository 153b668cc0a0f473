package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var showTasks bool

	cmd := &cobra.Command{
		Use:   "status <plan_run_id>",
		Short: "Check the outcome of a plan run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/plan-runs/" + id)
			if err != nil {
				return fmt.Errorf("get plan run: %w", err)
			}

			var run struct {
				ID           string            `json:"id"`
				State        string            `json:"state"`
				SampleCount  int               `json:"sample_count"`
				FailedCount  int               `json:"failed_count"`
				Failures     map[string]string `json:"failures"`
				FinalOutputs []string          `json:"final_outputs"`
				CreatedAt    string            `json:"created_at"`
				CompletedAt  string            `json:"completed_at"`
			}
			if err := json.Unmarshal(resp.Data, &run); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Plan run: %s\n", run.ID)
			fmt.Printf("  State:   %s\n", run.State)
			fmt.Printf("  Samples: %s planned, %s failed\n",
				humanize.Comma(int64(run.SampleCount)), humanize.Comma(int64(run.FailedCount)))
			if run.CreatedAt != "" {
				fmt.Printf("  Created: %s\n", run.CreatedAt)
			}
			if run.CompletedAt != "" {
				fmt.Printf("  Completed: %s\n", run.CompletedAt)
			}

			if len(run.Failures) > 0 {
				fmt.Println("  Failures:")
				for key, msg := range run.Failures {
					fmt.Printf("    - %s: %s\n", key, msg)
				}
			}

			if showTasks {
				tasksResp, err := client.Get("/api/v1/plan-runs/" + id + "/tasks")
				if err != nil {
					return fmt.Errorf("get tasks: %w", err)
				}
				var tasks []struct {
					ID        string `json:"id"`
					ProjectID string `json:"project_id"`
					SampleID  string `json:"sample_id"`
					Kind      string `json:"kind"`
					State     string `json:"state"`
				}
				if err := json.Unmarshal(tasksResp.Data, &tasks); err != nil {
					return fmt.Errorf("parse tasks response: %w", err)
				}
				fmt.Println("  Tasks:")
				for _, t := range tasks {
					fmt.Printf("    - %s [%s/%s %s]: %s\n", t.ID, t.ProjectID, t.SampleID, t.Kind, t.State)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showTasks, "tasks", false, "List the run's dispatch tasks")
	return cmd
}
