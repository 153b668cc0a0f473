package model

import "sort"

// SampleKey identifies one sample's plan within a multi-sample run.
type SampleKey struct {
	ProjectID string
	SampleID  string
}

// String renders the key the way log fields and path templates expect:
// "<project_id>/<sample_id>".
func (k SampleKey) String() string {
	return k.ProjectID + "/" + k.SampleID
}

// SamplePlan is one sample's fully-resolved dependency graph: the map
// rules and symlink rules the strategy parser and plan builder produced,
// plus the derived lookup sets the query surface reads from.
type SamplePlan struct {
	Key SampleKey

	// MapRules is the declared parse order (chain order), not insertion
	// order into a map — consumers that need deterministic iteration use
	// this slice, not RuleByOutPath's key order.
	MapRules     []*MapRule
	SymlinkRules []*SymlinkRule

	// FinalToken is the caller-supplied final artifact name for this
	// sample (e.g. "final.polyA_adapter_trimmed").
	FinalToken string

	// FinalLinkPath is the resolved path of this sample's single `final`
	// symlink — the one artifact every sample plan is guaranteed to have.
	FinalLinkPath string
}

// Plan is the authoritative, read-only set of per-sample plans plus the
// three maps the query surface answers from: map rules by out_path,
// symlinks by link_path, and index-build sentinels by map_index_file.
type Plan struct {
	Samples map[SampleKey]*SamplePlan

	// RuleByOutPath and SymlinkByLinkPath are populated once during plan
	// build and never mutated afterwards.
	RuleByOutPath     map[string]*MapRule
	SymlinkByLinkPath map[string]*SymlinkRule

	// IndexTable maps a map_index_file sentinel to the MapRule(s) whose
	// index build it proves. Keyed by sentinel path rather than rule so
	// that two rules sharing a reference+mapper share one index build.
	IndexTable map[string][]*MapRule

	// AllBAMs and AnnotatedBAMs are per-sample sets, the latter a subset
	// of the former restricted to rules with AnnPath set.
	AllBAMs      map[SampleKey][]*MapRule
	AnnotatedBAMs map[SampleKey][]*MapRule

	// StarFinalLogSymlinks maps each sample to the specific mapper-run log
	// that produced that sample's `final` artifact, the target of the
	// sample's canonical STAR final-log symlink. Absent for samples whose
	// final was produced by
	// bowtie2 (see §9 resolved open question).
	StarFinalLogSymlinks map[SampleKey]string
}

// NewPlan returns an empty, ready-to-populate Plan.
func NewPlan() *Plan {
	return &Plan{
		Samples:              make(map[SampleKey]*SamplePlan),
		RuleByOutPath:        make(map[string]*MapRule),
		SymlinkByLinkPath:    make(map[string]*SymlinkRule),
		IndexTable:           make(map[string][]*MapRule),
		AllBAMs:              make(map[SampleKey][]*MapRule),
		AnnotatedBAMs:        make(map[SampleKey][]*MapRule),
		StarFinalLogSymlinks: make(map[SampleKey]string),
	}
}

// FinalOutputs returns the sorted list of every sample's `final` symlink
// path, per the plan builder's determinism requirement.
func (p *Plan) FinalOutputs() []string {
	paths := make([]string, 0, len(p.Samples))
	for _, sp := range p.Samples {
		if sp.FinalLinkPath != "" {
			paths = append(paths, sp.FinalLinkPath)
		}
	}
	sort.Strings(paths)
	return paths
}
