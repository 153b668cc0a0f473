package planner

import "github.com/spacemake-go/mapplan/pkg/model"

// Query is the read-only view a workflow executor queries per artifact
// (§5.4). It wraps an already-built Plan; Query never mutates it.
type Query struct {
	plan *model.Plan
}

// NewQuery wraps plan in a read-only Query surface.
func NewQuery(plan *model.Plan) *Query {
	return &Query{plan: plan}
}

// Inputs describes what a MapRule at path consumes: the upstream BAM,
// the index sentinel file, and, when the rule has an annotation, the
// compiled annotation target it reads from.
type Inputs struct {
	BAM            string
	IndexFile      string
	Annotation     string // "" when the rule carries no annotation
	HasAnnotation  bool
}

// Inputs resolves path (a MapRule's out_path) to its Inputs descriptor.
func (q *Query) Inputs(path string) (Inputs, error) {
	rule, ok := q.plan.RuleByOutPath[path]
	if !ok {
		return Inputs{}, &model.UnknownArtifactError{Path: path}
	}
	in := Inputs{BAM: rule.InputPath, IndexFile: rule.MapIndexFile}
	if rule.HasAnnotation() {
		in.HasAnnotation = true
		in.Annotation = rule.AnnFinalCompiledTarget
	}
	return in, nil
}

// Params describes the command-shaping parameters for a MapRule at path:
// its mapper flags, its index parameter, the raw annotation source (if
// any), and the synthesised annotation-stage command (tagging or
// pass-through, §5.5).
type Params struct {
	Flags         string
	Index         string
	Annotation    string
	AnnotationCmd model.AnnotationCommand
}

// Params resolves path (a MapRule's out_path) to its Params descriptor.
func (q *Query) Params(path string) (Params, error) {
	rule, ok := q.plan.RuleByOutPath[path]
	if !ok {
		return Params{}, &model.UnknownArtifactError{Path: path}
	}
	return Params{
		Flags:         rule.MapFlags,
		Index:         rule.MapIndexParam,
		Annotation:    rule.AnnFinal,
		AnnotationCmd: AnnotationCommandFor(rule),
	}, nil
}

// SymlinkSource resolves path (a SymlinkRule's link_path) to its source
// path.
func (q *Query) SymlinkSource(path string) (string, error) {
	link, ok := q.plan.SymlinkByLinkPath[path]
	if !ok {
		return "", &model.UnknownArtifactError{Path: path}
	}
	return link.SrcPath, nil
}

// NoRiboIndexSentinel is returned by RiboLog when a sample's plan has no
// rRNA-depletion rule (§5.4).
const NoRiboIndexSentinel = "__no_rrna_index__"

// RiboLog returns the bowtie2 log path of the rule whose ref_name is
// "rRNA" in the given sample's plan, or NoRiboIndexSentinel if no such
// rule exists.
func (q *Query) RiboLog(key model.SampleKey) string {
	for _, rule := range q.plan.AllBAMs[key] {
		if rule.RefName == "rRNA" && rule.Mapper == model.MapperBowtie2 {
			return rule.LogPath
		}
	}
	return NoRiboIndexSentinel
}
