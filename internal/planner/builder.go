// Package planner cross-products parsed strategy rules against the
// sample table and reference registry into fully-qualified artifact
// descriptors (§5.3), then exposes a read-only query surface (§5.4) and
// a command synthesiser (§5.5) over the result.
package planner

import (
	"fmt"

	"github.com/spacemake-go/mapplan/internal/pathtmpl"
	"github.com/spacemake-go/mapplan/internal/refregistry"
	"github.com/spacemake-go/mapplan/internal/strategy"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// DefaultFinalToken is the canonical final-artifact token used when a
// caller does not supply a more specific one (e.g. one carrying
// processing-flag suffixes such as "final.polyA_adapter_trimmed").
const DefaultFinalToken = "final"

// Options configures a plan build.
type Options struct {
	// DefaultStrategy is used for any sample row whose MapStrategy is
	// empty.
	DefaultStrategy string

	// FinalToken is the caller-supplied final artifact name (§5.1). If
	// empty, DefaultFinalToken is used.
	FinalToken string

	// ResiduePolicy resolves the parallel-stage residue open question
	// (§9). Zero value is strategy.LastWins.
	ResiduePolicy strategy.ResiduePolicy
}

func (o Options) finalToken() string {
	if o.FinalToken == "" {
		return DefaultFinalToken
	}
	return o.FinalToken
}

// Build constructs a Plan from every non-merged row in rows. Per-sample
// failures do not poison other samples' plans (§7): a sample whose build
// fails contributes no MapRules/SymlinkRules/sample plan to the
// returned Plan, and its error is reported in the returned map keyed by
// that sample.
func Build(rows []model.SampleRow, registry *refregistry.Registry, opts Options) (*model.Plan, map[model.SampleKey]error) {
	plan := model.NewPlan()
	failures := make(map[model.SampleKey]error)

	for _, row := range rows {
		if row.IsMerged {
			continue
		}
		sp, err := buildSample(row, registry, opts)
		if err != nil {
			failures[row.Key()] = err
			continue
		}
		mergeSample(plan, sp)
	}

	return plan, failures
}

// sampleBuild accumulates one sample's plan locally so that a failure
// partway through never leaves a partial sample merged into the shared
// Plan (§7 "no partial plan is exposed").
type sampleBuild struct {
	samplePlan *model.SamplePlan

	ruleByOutPath     map[string]*model.MapRule
	symlinkByLinkPath map[string]*model.SymlinkRule
	indexAdds         map[string][]*model.MapRule
	allBAMs           []*model.MapRule
	annotatedBAMs     []*model.MapRule
	starFinalLog      string // "" when final was not produced by STAR
}

func buildSample(row model.SampleRow, registry *refregistry.Registry, opts Options) (*sampleBuild, error) {
	mapstr := row.MapStrategy
	if mapstr == "" {
		mapstr = opts.DefaultStrategy
	}
	final := opts.finalToken()

	parsed, err := strategy.Parse(mapstr, model.UBAMName, final, opts.ResiduePolicy)
	if err != nil {
		return nil, err
	}

	key := row.Key()
	root := row.DataRoot()
	logDir := row.LogDir()

	sb := &sampleBuild{
		samplePlan: &model.SamplePlan{
			Key:        key,
			FinalToken: final,
		},
		ruleByOutPath:     make(map[string]*model.MapRule),
		symlinkByLinkPath: make(map[string]*model.SymlinkRule),
		indexAdds:         make(map[string][]*model.MapRule),
	}

	// Rules by out_name within this sample, so symlink resolution (§5.3
	// step 3a) never reaches into another sample's rules.
	ruleByOutName := make(map[string]*model.MapRule, len(parsed.Rules))

	for _, r := range parsed.Rules {
		rule, err := resolveRule(row, root, logDir, r, registry)
		if err != nil {
			return nil, err
		}
		if _, dup := sb.ruleByOutPath[rule.OutPath]; dup {
			return nil, &model.DuplicateArtifactError{SampleID: key.String(), OutPath: rule.OutPath}
		}

		sb.ruleByOutPath[rule.OutPath] = rule
		sb.indexAdds[rule.MapIndexFile] = append(sb.indexAdds[rule.MapIndexFile], rule)
		sb.allBAMs = append(sb.allBAMs, rule)
		if rule.HasAnnotation() {
			sb.annotatedBAMs = append(sb.annotatedBAMs, rule)
		}
		ruleByOutName[rule.OutName] = rule
		sb.samplePlan.MapRules = append(sb.samplePlan.MapRules, rule)
	}

	for _, s := range parsed.Symlinks {
		if err := sb.addSymlink(row, root, final, s, ruleByOutName); err != nil {
			return nil, err
		}
	}

	return sb, nil
}

// addSymlink resolves one parsed strategy.Symlink against this sample's
// rules (§5.3 step 3a) and, if it resolves, records it. ruleByOutName must
// be scoped to the same sample so that a symlink never reaches into
// another sample's rules.
func (sb *sampleBuild) addSymlink(row model.SampleRow, root, final string, s strategy.Symlink, ruleByOutName map[string]*model.MapRule) error {
	key := row.Key()

	srcRule, ok := ruleByOutName[s.LinkSrc]
	if !ok {
		return &model.DanglingSymlinkError{SampleID: key.String(), LinkSrc: s.LinkSrc}
	}

	linkPath, err := pathtmpl.Render(pathtmpl.LinkedBAM, map[string]string{
		"root": root, "link_name": s.LinkName,
	})
	if err != nil {
		return fmt.Errorf("sample %s: %w", key, err)
	}
	if _, dup := sb.symlinkByLinkPath[linkPath]; dup {
		return &model.DuplicateArtifactError{SampleID: key.String(), OutPath: linkPath}
	}

	symlink := &model.SymlinkRule{
		LinkSrc:   s.LinkSrc,
		LinkName:  s.LinkName,
		RefName:   s.RefName,
		ProjectID: row.ProjectID,
		SampleID:  row.SampleID,
		SrcPath:   srcRule.OutPath,
		LinkPath:  linkPath,
	}
	sb.symlinkByLinkPath[linkPath] = symlink
	sb.samplePlan.SymlinkRules = append(sb.samplePlan.SymlinkRules, symlink)

	if s.LinkName == final {
		sb.samplePlan.FinalLinkPath = linkPath
		// §9 resolved open question: the STAR-final-log symlink is
		// only meaningful (and only registered) when the final
		// artifact was itself produced by a STAR run.
		if srcRule.Mapper == model.MapperSTAR {
			sb.starFinalLog = srcRule.LogPath
		}
	}

	return nil
}

// resolveRule expands one parsed strategy.Rule into a fully-qualified
// model.MapRule (§5.3 step 2).
func resolveRule(row model.SampleRow, root, logDir string, r strategy.Rule, registry *refregistry.Registry) (*model.MapRule, error) {
	ref, err := registry.Resolve(r.RefName, row.Species)
	if err != nil {
		return nil, err
	}

	// input_name is either the canonical uBAM name or not_<prev_out_name>
	// (§3); both shapes render through the same <root>/<name>.bam template.
	inputPath, err := pathtmpl.Render(pathtmpl.BAMByName, map[string]string{"root": root, "name": r.InputName})
	if err != nil {
		return nil, err
	}

	fields := map[string]string{"root": root, "ref_name": r.RefName, "mapper": string(r.Mapper)}
	outPath, err := pathtmpl.Render(pathtmpl.MappedBAM, fields)
	if err != nil {
		return nil, err
	}
	unmappedPath, err := pathtmpl.Render(pathtmpl.UnmappedBAM, fields)
	if err != nil {
		return nil, err
	}

	logFields := map[string]string{"log_dir": logDir, "ref_name": r.RefName, "mapper": string(r.Mapper)}
	logPath, err := pathtmpl.Render(pathtmpl.MapLog, logFields)
	if err != nil {
		return nil, err
	}
	headerLogPath, err := pathtmpl.Render(pathtmpl.HeaderLog, logFields)
	if err != nil {
		return nil, err
	}

	mapIndex := registry.IndexDirFor(ref, r.Mapper)
	mapIndexSentinel := registry.IndexSentinelFor(ref, r.Mapper)
	mapIndexFile := mapIndex + "/" + mapIndexSentinel

	mapIndexParam := mapIndex
	if r.Mapper == model.MapperBowtie2 {
		// bowtie2's -x parameter is a basename, not a directory (§3).
		mapIndexParam = mapIndex + "/" + ref.Name
	}

	rule := &model.MapRule{
		InputName:     r.InputName,
		Mapper:        r.Mapper,
		RefName:       r.RefName,
		OutName:       r.OutName,
		ProjectID:     row.ProjectID,
		SampleID:      row.SampleID,
		Species:       row.Species,
		InputPath:     inputPath,
		OutPath:       outPath,
		UnmappedPath:  unmappedPath,
		LogPath:       logPath,
		HeaderLogPath: headerLogPath,
		MapIndex:      mapIndex,
		MapIndexParam: mapIndexParam,
		MapIndexFile:  mapIndexFile,
		MapFlags:        registry.FlagsFor(ref, r.Mapper),
		SequencePath:    ref.Sequence,
		SequenceGzipped: ref.SequenceGzipped,
	}

	if ref.HasAnnotation() {
		rule.AnnPath = ref.Annotation
		annFields := fields
		rule.AnnFinal, err = pathtmpl.Render(pathtmpl.AnnFinal, annFields)
		if err != nil {
			return nil, err
		}
		rule.AnnFinalCompiled, err = pathtmpl.Render(pathtmpl.AnnFinalCompiled, annFields)
		if err != nil {
			return nil, err
		}
		rule.AnnFinalCompiledTarget, err = pathtmpl.Render(pathtmpl.AnnFinalCompiledTgt, annFields)
		if err != nil {
			return nil, err
		}
	}

	return rule, nil
}

// mergeSample folds one sample's local build into the shared Plan.
func mergeSample(plan *model.Plan, sb *sampleBuild) {
	key := sb.samplePlan.Key
	plan.Samples[key] = sb.samplePlan

	for path, rule := range sb.ruleByOutPath {
		plan.RuleByOutPath[path] = rule
	}
	for path, link := range sb.symlinkByLinkPath {
		plan.SymlinkByLinkPath[path] = link
	}
	for sentinel, rules := range sb.indexAdds {
		plan.IndexTable[sentinel] = append(plan.IndexTable[sentinel], rules...)
	}
	plan.AllBAMs[key] = sb.allBAMs
	plan.AnnotatedBAMs[key] = sb.annotatedBAMs
	if sb.starFinalLog != "" {
		plan.StarFinalLogSymlinks[key] = sb.starFinalLog
	}
}
