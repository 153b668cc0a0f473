package scheduler

import (
	"strings"
	"testing"

	"github.com/spacemake-go/mapplan/internal/planner"
	"github.com/spacemake-go/mapplan/pkg/model"
)

func testPlanWithChain() *model.Plan {
	plan := model.NewPlan()
	key := model.SampleKey{ProjectID: "proj1", SampleID: "sample1"}

	first := &model.MapRule{
		InputName:    "uBAM",
		Mapper:       model.MapperSTAR,
		RefName:      "genome",
		OutName:      "genome.star",
		ProjectID:    key.ProjectID,
		SampleID:     key.SampleID,
		InputPath:    "/data/proj1/sample1/uBAM.bam",
		OutPath:      "/data/proj1/sample1/genome.star.bam",
		UnmappedPath: "/data/proj1/sample1/not_genome.star.bam",
		MapFlags:     "--runMode alignReads",
	}
	// second's input_name is not_genome.star, which resolveRule renders as
	// first's unmapped_path, never first's out_path — mirror that shape here
	// rather than hand-wiring InputPath to first.OutPath.
	second := &model.MapRule{
		InputName: "not_genome.star",
		Mapper:    model.MapperBowtie2,
		RefName:   "rRNA",
		OutName:   "rRNA.bowtie2",
		ProjectID: key.ProjectID,
		SampleID:  key.SampleID,
		InputPath: first.UnmappedPath,
		OutPath:   "/data/proj1/sample1/rRNA.bowtie2.bam",
		MapFlags:  "-p 4",
	}

	plan.Samples[key] = &model.SamplePlan{
		Key:      key,
		MapRules: []*model.MapRule{first, second},
	}
	plan.RuleByOutPath[first.OutPath] = first
	plan.RuleByOutPath[second.OutPath] = second

	return plan
}

func TestBuildTasks_ChainedDependency(t *testing.T) {
	plan := testPlanWithChain()
	key := model.SampleKey{ProjectID: "proj1", SampleID: "sample1"}
	q := planner.NewQuery(plan)

	tasks := BuildTasks("run1", plan.Samples[key], q, model.ExecutorTypeLocal)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	byOutPath := make(map[string]*model.DispatchTask)
	for _, task := range tasks {
		byOutPath[task.OutPath] = task
	}

	first := byOutPath["/data/proj1/sample1/genome.star.bam"]
	second := byOutPath["/data/proj1/sample1/rRNA.bowtie2.bam"]
	if first == nil || second == nil {
		t.Fatalf("missing expected tasks: %+v", byOutPath)
	}

	if len(first.DependsOn) != 0 {
		t.Errorf("first rule (consumes uBAM) should have no deps, got %v", first.DependsOn)
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != first.ID {
		t.Errorf("second rule should depend on first task %q, got %v", first.ID, second.DependsOn)
	}

	if len(first.Command) != 3 || first.Command[0] != "/bin/sh" || first.Command[1] != "-c" {
		t.Fatalf("expected a /bin/sh -c pipeline, got %v", first.Command)
	}
	pipeline := first.Command[2]
	if !strings.Contains(pipeline, "STAR") {
		t.Errorf("pipeline %q missing the mapper stage", pipeline)
	}
	if !strings.Contains(pipeline, "samtools reheader") {
		t.Errorf("pipeline %q missing the header-splice stage", pipeline)
	}
	if !strings.Contains(pipeline, first.OutPath) {
		t.Errorf("pipeline %q never writes out_path %q", pipeline, first.OutPath)
	}

	for _, task := range tasks {
		if task.PlanRunID != "run1" {
			t.Errorf("task %q PlanRunID = %q, want run1", task.ID, task.PlanRunID)
		}
		if task.State != model.TaskStatePending {
			t.Errorf("task %q initial state = %q, want PENDING", task.ID, task.State)
		}
		if len(task.Command) == 0 {
			t.Errorf("task %q has no command", task.ID)
		}
	}
}

func TestBuildTasks_ParallelStageNoCrossDeps(t *testing.T) {
	plan := model.NewPlan()
	key := model.SampleKey{ProjectID: "proj1", SampleID: "sample1"}

	ruleA := &model.MapRule{
		InputName: "uBAM",
		Mapper:    model.MapperSTAR,
		RefName:   "genomeA",
		OutName:   "genomeA.star",
		ProjectID: key.ProjectID,
		SampleID:  key.SampleID,
		InputPath: "/data/proj1/sample1/uBAM.bam",
		OutPath:   "/data/proj1/sample1/genomeA.star.bam",
		MapFlags:  "--runMode alignReads",
	}
	ruleB := &model.MapRule{
		InputName: "uBAM",
		Mapper:    model.MapperSTAR,
		RefName:   "genomeB",
		OutName:   "genomeB.star",
		ProjectID: key.ProjectID,
		SampleID:  key.SampleID,
		InputPath: "/data/proj1/sample1/uBAM.bam",
		OutPath:   "/data/proj1/sample1/genomeB.star.bam",
		MapFlags:  "--runMode alignReads",
	}

	plan.Samples[key] = &model.SamplePlan{Key: key, MapRules: []*model.MapRule{ruleA, ruleB}}
	plan.RuleByOutPath[ruleA.OutPath] = ruleA
	plan.RuleByOutPath[ruleB.OutPath] = ruleB

	q := planner.NewQuery(plan)
	tasks := BuildTasks("run1", plan.Samples[key], q, model.ExecutorTypeLocal)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if len(task.DependsOn) != 0 {
			t.Errorf("parallel-stage task %q should have no deps, got %v", task.ID, task.DependsOn)
		}
	}
}

func TestIndexTasks_OnePerSentinel(t *testing.T) {
	plan := model.NewPlan()
	rule := &model.MapRule{
		Mapper:        model.MapperSTAR,
		RefName:       "genome",
		ProjectID:     "proj1",
		SampleID:      "sample1",
		MapIndex:      "/refs/genome/star_index",
		MapIndexParam: "/refs/genome/star_index",
		MapIndexFile:  "/refs/genome/star_index/SAindex",
		SequencePath:  "/refs/genome/genome.fa",
	}
	plan.IndexTable[rule.MapIndexFile] = []*model.MapRule{rule}

	tasks := IndexTasks("run1", plan)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 index task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Kind != model.DispatchKindIndexBuild {
		t.Errorf("Kind = %q, want index_build", task.Kind)
	}
	if task.OutPath != rule.MapIndexFile {
		t.Errorf("OutPath = %q, want %q", task.OutPath, rule.MapIndexFile)
	}
	if len(task.Command) == 0 {
		t.Error("index task has no command")
	}
}

func TestIndexTasks_SkipsEmptySentinels(t *testing.T) {
	plan := model.NewPlan()
	plan.IndexTable["/refs/orphan/sentinel"] = nil

	tasks := IndexTasks("run1", plan)
	if len(tasks) != 0 {
		t.Fatalf("expected 0 tasks for empty sentinel entry, got %d", len(tasks))
	}
}
