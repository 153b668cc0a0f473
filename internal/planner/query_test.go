package planner

import (
	"testing"

	"github.com/spacemake-go/mapplan/pkg/model"
)

func TestQuery_EndToEndAnnotatedFinal(t *testing.T) {
	registry := testRegistry(t)
	row := testRow("STAR:genome:final")

	plan, failures := Build([]model.SampleRow{row}, registry, Options{})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	q := NewQuery(plan)
	sp := plan.Samples[row.Key()]

	bamPath, err := q.SymlinkSource(sp.FinalLinkPath)
	if err != nil {
		t.Fatalf("SymlinkSource: %v", err)
	}

	inputs, err := q.Inputs(bamPath)
	if err != nil {
		t.Fatalf("Inputs: %v", err)
	}
	if !inputs.HasAnnotation {
		t.Error("expected genome.STAR to carry an annotation")
	}

	params, err := q.Params(bamPath)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if !params.AnnotationCmd.Tagging {
		t.Error("expected a tagging AnnotationCommand for an annotated rule")
	}
	if params.AnnotationCmd.CompiledAnnotation == "" {
		t.Error("expected Params.AnnotationCmd to reference the compiled annotation target")
	}
}

func TestQuery_UnknownArtifact(t *testing.T) {
	q := NewQuery(model.NewPlan())

	if _, err := q.Inputs("nope.bam"); err == nil {
		t.Error("expected UnknownArtifactError from Inputs")
	}
	if _, err := q.Params("nope.bam"); err == nil {
		t.Error("expected UnknownArtifactError from Params")
	}
	if _, err := q.SymlinkSource("nope.bam"); err == nil {
		t.Error("expected UnknownArtifactError from SymlinkSource")
	}
}

func TestQuery_RiboLog(t *testing.T) {
	registry := testRegistry(t)

	withRibo := testRow("bowtie2:rRNA->STAR:genome:final")
	plan, failures := Build([]model.SampleRow{withRibo}, registry, Options{})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	q := NewQuery(plan)
	if log := q.RiboLog(withRibo.Key()); log == NoRiboIndexSentinel {
		t.Error("expected a ribo log path, got the no-index sentinel")
	}

	withoutRibo := testRow("STAR:genome:final")
	plan2, failures2 := Build([]model.SampleRow{withoutRibo}, registry, Options{})
	if len(failures2) != 0 {
		t.Fatalf("unexpected failures: %v", failures2)
	}
	q2 := NewQuery(plan2)
	if log := q2.RiboLog(withoutRibo.Key()); log != NoRiboIndexSentinel {
		t.Errorf("RiboLog = %q, want the no-index sentinel", log)
	}
}
