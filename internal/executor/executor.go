// Package executor runs the commands the planner's command synthesiser
// describes. The planner itself never executes anything; this package is
// the pluggable backend a scheduler hands DispatchTasks to.
package executor

import (
	"context"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// Executor is a pluggable backend that runs DispatchTasks.
type Executor interface {
	// Type returns the executor type identifier.
	Type() model.ExecutorType

	// Submit runs the task synchronously and returns an external ID
	// identifying the run (a work directory, a container name).
	Submit(ctx context.Context, task *model.DispatchTask) (externalID string, err error)

	// Status derives the task's current state from what Submit recorded.
	Status(ctx context.Context, task *model.DispatchTask) (model.TaskState, error)

	// Cancel requests cancellation of a running task.
	Cancel(ctx context.Context, task *model.DispatchTask) error

	// Logs retrieves stdout and stderr for a task.
	Logs(ctx context.Context, task *model.DispatchTask) (stdout, stderr string, err error)
}
