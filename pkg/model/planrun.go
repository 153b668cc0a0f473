package model

import "time"

// PlanRunState is the lifecycle state of a persisted plan build.
type PlanRunState string

const (
	PlanRunStateBuilding PlanRunState = "BUILDING"
	PlanRunStateComplete PlanRunState = "COMPLETE"
	PlanRunStateFailed   PlanRunState = "FAILED"
)

// PlanRun is a persisted record of one plan-build invocation: which sample
// table snapshot and reference registry snapshot produced which final
// artifact paths (§4.1). Kept for audit and for the CLI's status command;
// the planner itself never reads PlanRun back.
type PlanRun struct {
	ID        string       `json:"id"`
	State     PlanRunState `json:"state"`

	// SampleTableHash and RegistryHash identify the inputs that produced
	// this run, so two identical inputs can be recognised as the same run
	// without re-hashing the full document on every query.
	SampleTableHash string `json:"sample_table_hash"`
	RegistryHash    string `json:"registry_hash"`

	SampleCount int `json:"sample_count"`
	FailedCount int `json:"failed_count"`

	// FinalOutputs is the sorted list of every sample's final symlink path
	// (model.Plan.FinalOutputs), persisted so `map-planner status` never
	// needs to rebuild the plan to answer "what did this run produce".
	FinalOutputs []string `json:"final_outputs"`

	// Failures maps "<project_id>/<sample_id>" to the error string that
	// aborted that sample's plan build, if any.
	Failures map[string]string `json:"failures,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListOptions paginates and filters store list queries.
type ListOptions struct {
	Limit  int
	Offset int
}
