// Package scheduler walks a sample's resolved MapRule chain in dependency
// order and dispatches DispatchTasks to executors, respecting the chain
// invariant the planner guarantees (§7) and bounding concurrency with a
// semaphore.
package scheduler

import "context"

// Scheduler evaluates task readiness and dispatches tasks to executors.
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Tick runs a single scheduling iteration. Used for testing.
	Tick(ctx context.Context) error
}
