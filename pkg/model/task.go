package model

import "time"

// DispatchKind identifies which of the planner's two command shapes a
// DispatchTask carries.
type DispatchKind string

const (
	DispatchKindMap        DispatchKind = "map"        // run a mapper and its tagging/pass-through stage
	DispatchKindIndexBuild DispatchKind = "index_build" // build a mapper index on demand
)

// DispatchTask is the unit the scheduler hands to an Executor: one
// MapRule's command, or one index-build command. The planner itself never
// creates these; they are produced by the dispatcher layer from the
// planner's read-only query surface.
type DispatchTask struct {
	ID           string       `json:"id"`
	PlanRunID    string       `json:"plan_run_id"`
	ProjectID    string       `json:"project_id"`
	SampleID     string       `json:"sample_id"`
	OutPath      string       `json:"out_path"` // the MapRule this task executes, by out_path
	Kind         DispatchKind `json:"kind"`
	ExecutorType ExecutorType `json:"executor_type"`
	State        TaskState    `json:"state"`

	DependsOn []string `json:"depends_on,omitempty"` // task IDs, not out_paths

	// Command is the flat argv the executor runs, assembled by
	// internal/planner's command synthesiser at dispatch time. WorkDir is
	// the directory the command runs in; LogPath is where the executor
	// should also mirror stderr for operator inspection (mirrors the
	// MapRule's LogPath/index build log).
	Command []string `json:"command,omitempty"`
	WorkDir string   `json:"work_dir,omitempty"`
	LogPath string   `json:"log_path,omitempty"`

	// ContainerImage is consulted only by the container executor; it is
	// empty for tasks dispatched to the local executor.
	ContainerImage string `json:"container_image,omitempty"`

	ExternalID string `json:"external_id,omitempty"`

	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"-"`
	Stderr   string `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IndexCommand is the synthesiser's structured description of how to build
// one mapper's index for one reference. It describes the command; it never
// runs it (§4.5/§7).
type IndexCommand struct {
	Mapper      Mapper   `json:"mapper"`
	RefName     string   `json:"ref_name"`
	SequencePath string  `json:"sequence_path"`
	AnnotationPath string `json:"annotation_path,omitempty"`
	OutputDir   string   `json:"output_dir"`
	Sentinel    string   `json:"sentinel"`
	Gzipped     bool     `json:"gzipped"`
	Args        []string `json:"args"`
}

// AnnotationCommand is the synthesiser's structured description of the
// post-alignment stage between a mapper's BAM stream and the final BAM
// file: either a tagging stage (when annotation is present) or a
// pass-through stage that merely repackages the stream.
type AnnotationCommand struct {
	// Tagging is false for the pass-through variant.
	Tagging bool `json:"tagging"`

	// CompiledAnnotation is the side-table the tagging stage consults.
	// Empty for pass-through.
	CompiledAnnotation string `json:"compiled_annotation,omitempty"`

	LogPath string   `json:"log_path"`
	Args    []string `json:"args"`
}

// HeaderSpliceCommand is the synthesiser's structured description of the
// provenance-chain merge stage (§4.5 "Header splicing"): it reheaders the
// mapper's output against the upstream uBAM's program-record history, so
// that SourcePath's @PG chain survives into the record the annotation
// stage eventually writes to OutPath. It runs between the mapper and the
// annotation/pass-through stage, never after it.
type HeaderSpliceCommand struct {
	// SourcePath is the upstream uBAM whose @PG history is preserved.
	SourcePath string `json:"source_path"`

	LogPath string   `json:"log_path"`
	Args    []string `json:"args"`
}
