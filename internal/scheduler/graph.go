package scheduler

import (
	"strings"

	"github.com/spacemake-go/mapplan/internal/planner"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// BuildTasks translates one sample's resolved MapRules into DispatchTasks,
// deriving DependsOn from the chain invariant: a rule depends on whichever
// other rule in the same sample produced its input_path (or depends on
// nothing, when its input is the sample's uBAM). Rules in the same stage
// share no dependency between each other.
//
// A chained rule's input_path is rendered as not_<upstream.out_name>, which
// is the upstream rule's unmapped_path, never its out_path (see
// internal/planner/builder.go) — so the lookup below is keyed by
// UnmappedPath, not OutPath.
func BuildTasks(planRunID string, sp *model.SamplePlan, q *planner.Query, executorType model.ExecutorType) []*model.DispatchTask {
	taskIDByUnmappedPath := make(map[string]string, len(sp.MapRules))
	for _, rule := range sp.MapRules {
		if rule.UnmappedPath != "" {
			taskIDByUnmappedPath[rule.UnmappedPath] = taskID(sp.Key, rule.OutName)
		}
	}

	tasks := make([]*model.DispatchTask, 0, len(sp.MapRules))
	for _, rule := range sp.MapRules {
		if _, err := q.Params(rule.OutPath); err != nil {
			continue
		}

		cmd := pipelineCommand(rule)

		task := &model.DispatchTask{
			ID:           taskID(sp.Key, rule.OutName),
			PlanRunID:    planRunID,
			ProjectID:    rule.ProjectID,
			SampleID:     rule.SampleID,
			OutPath:      rule.OutPath,
			Kind:         model.DispatchKindMap,
			ExecutorType: executorType,
			State:        model.TaskStatePending,
			Command:      cmd,
			LogPath:      rule.LogPath,
		}

		if depID, ok := taskIDByUnmappedPath[rule.InputPath]; ok {
			task.DependsOn = append(task.DependsOn, depID)
		}

		tasks = append(tasks, task)
	}

	return tasks
}

// pipelineCommand composes a rule's three synthesised stages — the mapper,
// the header-splice merge, and the annotation/pass-through stage — into the
// single shell pipeline an Executor actually runs. The mapper alone never
// writes out_path; only the full chain does (§4.5).
func pipelineCommand(rule *model.MapRule) []string {
	mapArgs := planner.MapCommandArgs(rule)
	spliceArgs := planner.HeaderSpliceCommandFor(rule).Args
	annArgs := planner.AnnotationCommandFor(rule).Args

	pipeline := strings.Join(mapArgs, " ") + " | " + strings.Join(spliceArgs, " ") + " | " + strings.Join(annArgs, " ")
	return []string{"/bin/sh", "-c", pipeline}
}

// IndexTasks translates a plan's index table into one DispatchTask per
// distinct index sentinel, so a worker can build missing indexes before any
// map task that needs them is dispatched.
func IndexTasks(planRunID string, plan *model.Plan) []*model.DispatchTask {
	var tasks []*model.DispatchTask
	for sentinel, rules := range plan.IndexTable {
		if len(rules) == 0 {
			continue
		}
		rule := rules[0]
		cmd := planner.IndexCommandFor(rule)
		tasks = append(tasks, &model.DispatchTask{
			ID:           indexTaskID(sentinel),
			PlanRunID:    planRunID,
			ProjectID:    rule.ProjectID,
			SampleID:     rule.SampleID,
			OutPath:      sentinel,
			Kind:         model.DispatchKindIndexBuild,
			ExecutorType: model.ExecutorTypeLocal,
			State:        model.TaskStatePending,
			Command:      cmd.Args,
			WorkDir:      rule.MapIndex,
		})
	}
	return tasks
}

func taskID(key model.SampleKey, outName string) string {
	return key.ProjectID + "/" + key.SampleID + "/" + outName
}

func indexTaskID(sentinel string) string {
	return "index/" + sentinel
}
