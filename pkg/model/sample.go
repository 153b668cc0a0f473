package model

// SampleRow is one row of the sample table contract: indexed by
// (ProjectID, SampleID), carrying the species used for reference
// resolution, an optional per-sample strategy override, and the
// merged-sample skip flag.
type SampleRow struct {
	ProjectID   string `yaml:"project_id" json:"project_id"`
	SampleID    string `yaml:"sample_id" json:"sample_id"`
	Species     string `yaml:"species" json:"species"`
	MapStrategy string `yaml:"map_strategy,omitempty" json:"map_strategy,omitempty"`
	IsMerged    bool   `yaml:"is_merged,omitempty" json:"is_merged,omitempty"`
}

// Key returns the SampleKey this row is indexed by.
func (r SampleRow) Key() SampleKey {
	return SampleKey{ProjectID: r.ProjectID, SampleID: r.SampleID}
}

// DataRoot returns the per-sample data root used to resolve path templates:
// <project_id>/processed_data/<sample_id>/illumina.
func (r SampleRow) DataRoot() string {
	return r.ProjectID + "/processed_data/" + r.SampleID + "/illumina"
}

// LogDir returns the per-sample log directory.
func (r SampleRow) LogDir() string {
	return r.DataRoot() + "/logs"
}

// UBAMName is the canonical name (without extension) of the sample's
// unmapped BAM, the entry point for every mapping chain.
const UBAMName = "unaligned_bc_tagged"
