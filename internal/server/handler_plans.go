package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spacemake-go/mapplan/internal/planner"
	"github.com/spacemake-go/mapplan/internal/refregistry"
	"github.com/spacemake-go/mapplan/internal/sampletable"
	"github.com/spacemake-go/mapplan/internal/scheduler"
	"github.com/spacemake-go/mapplan/pkg/model"
)

type createPlanRequest struct {
	SampleTableID       string             `json:"sample_table_id"`
	ReferenceRegistryID string             `json:"reference_registry_id"`
	DefaultStrategy     string             `json:"default_strategy"`
	FinalToken          string             `json:"final_token"`
	ExecutorType        model.ExecutorType `json:"executor_type"`
}

// handleCreatePlan builds a plan from a registered sample table and
// reference registry (§5.3), persists the run and every resulting
// DispatchTask, and installs the plan's query surface (§5.4) as the one
// GET /api/v1/plans/{project}/{sample}/... answers from.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ctx := r.Context()

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.SampleTableID == "" || req.ReferenceRegistryID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing required field",
			model.FieldError{Field: "sample_table_id", Message: "required"},
			model.FieldError{Field: "reference_registry_id", Message: "required"}))
		return
	}
	if req.ExecutorType == "" {
		req.ExecutorType = model.ExecutorTypeLocal
	}

	tableDoc, err := s.store.GetSampleTable(ctx, req.SampleTableID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if tableDoc == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("sample table", req.SampleTableID))
		return
	}
	registryDoc, err := s.store.GetReferenceRegistry(ctx, req.ReferenceRegistryID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if registryDoc == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("reference registry", req.ReferenceRegistryID))
		return
	}

	table, err := sampletable.LoadBytes(tableDoc)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	registry, err := refregistry.LoadBytes(registryDoc, s.logger)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	rows := table.Unmerged()
	plan, failures := planner.Build(rows, registry, planner.Options{
		DefaultStrategy: req.DefaultStrategy,
		FinalToken:      req.FinalToken,
	})

	now := time.Now().UTC()
	run := &model.PlanRun{
		ID:              "run_" + uuid.New().String(),
		State:           model.PlanRunStateComplete,
		SampleTableHash: req.SampleTableID,
		RegistryHash:    req.ReferenceRegistryID,
		SampleCount:     len(rows),
		FailedCount:     len(failures),
		FinalOutputs:    plan.FinalOutputs(),
		CreatedAt:       now,
		CompletedAt:     &now,
	}
	if len(failures) > 0 {
		run.Failures = make(map[string]string, len(failures))
		for key, ferr := range failures {
			run.Failures[key.String()] = ferr.Error()
		}
	}

	if err := s.store.CreatePlanRun(ctx, run); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	query := planner.NewQuery(plan)
	for _, task := range scheduler.IndexTasks(run.ID, plan) {
		if err := s.store.CreateTask(ctx, task); err != nil {
			respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
			return
		}
	}
	for key, sp := range plan.Samples {
		for _, task := range scheduler.BuildTasks(run.ID, sp, query, req.ExecutorType) {
			if err := s.store.CreateTask(ctx, task); err != nil {
				respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
				return
			}
		}
		s.logger.Info("plan sample dispatched", "project_id", key.ProjectID, "sample_id", key.SampleID)
	}

	s.setCurrentPlan(run.ID, query)
	s.logger.Info("plan built", "plan_run_id", run.ID, "sample_count", run.SampleCount, "failed_count", run.FailedCount)
	respondCreated(w, reqID, run)
}

func (s *Server) handlePlanInputs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing required query parameter",
			model.FieldError{Field: "path", Message: "required"}))
		return
	}

	q := s.currentQueryOrNil()
	if q == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan", "none built yet"))
		return
	}
	inputs, err := q.Inputs(path)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("artifact", path))
		return
	}
	respondOK(w, reqID, inputs)
}

func (s *Server) handlePlanParams(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing required query parameter",
			model.FieldError{Field: "path", Message: "required"}))
		return
	}

	q := s.currentQueryOrNil()
	if q == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan", "none built yet"))
		return
	}
	params, err := q.Params(path)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("artifact", path))
		return
	}
	respondOK(w, reqID, params)
}

func (s *Server) handlePlanSymlinkSource(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("missing required query parameter",
			model.FieldError{Field: "path", Message: "required"}))
		return
	}

	q := s.currentQueryOrNil()
	if q == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan", "none built yet"))
		return
	}
	src, err := q.SymlinkSource(path)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("symlink", path))
		return
	}
	respondOK(w, reqID, map[string]string{"source": src})
}

// handleGetPlanRun answers the CLI's status command and any other
// caller that wants a past run's outcome rather than the live query
// surface.
func (s *Server) handleGetPlanRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetPlanRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListPlanRunTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	tasks, err := s.store.ListTasksByPlanRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	respondOK(w, reqID, tasks)
}

func (s *Server) handlePlanRiboLog(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	project := chi.URLParam(r, "project")
	sample := chi.URLParam(r, "sample")

	q := s.currentQueryOrNil()
	if q == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("plan", "none built yet"))
		return
	}
	log := q.RiboLog(model.SampleKey{ProjectID: project, SampleID: sample})
	respondOK(w, reqID, map[string]any{
		"ribo_log":      log,
		"has_rrna_index": log != planner.NoRiboIndexSentinel,
	})
}
