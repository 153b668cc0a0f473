// Package store persists plan runs and dispatch tasks so the server and CLI
// can answer "what happened" without rebuilding a plan in memory.
package store

import (
	"context"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// Store defines the persistence layer for plan runs and dispatch tasks.
type Store interface {
	// SaveSampleTable and SaveReferenceRegistry persist the raw YAML
	// document a client registered, keyed by a server-assigned id, so a
	// later plan build can re-read the exact bytes that produced it.
	SaveSampleTable(ctx context.Context, id string, document []byte) error
	GetSampleTable(ctx context.Context, id string) ([]byte, error)
	SaveReferenceRegistry(ctx context.Context, id string, document []byte) error
	GetReferenceRegistry(ctx context.Context, id string) ([]byte, error)

	CreatePlanRun(ctx context.Context, run *model.PlanRun) error
	GetPlanRun(ctx context.Context, id string) (*model.PlanRun, error)
	ListPlanRuns(ctx context.Context, opts model.ListOptions) ([]*model.PlanRun, int, error)
	UpdatePlanRun(ctx context.Context, run *model.PlanRun) error

	CreateTask(ctx context.Context, task *model.DispatchTask) error
	GetTask(ctx context.Context, id string) (*model.DispatchTask, error)
	ListTasksByPlanRun(ctx context.Context, planRunID string) ([]*model.DispatchTask, error)
	UpdateTask(ctx context.Context, task *model.DispatchTask) error
	GetTasksByState(ctx context.Context, state model.TaskState) ([]*model.DispatchTask, error)

	// CheckoutTask atomically claims the oldest PENDING task for executorType
	// and moves it to QUEUED, returning nil (no error) if none is available.
	CheckoutTask(ctx context.Context, executorType model.ExecutorType) (*model.DispatchTask, error)

	Close() error
	Migrate(ctx context.Context) error
}
