package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// handleCheckoutTask lets a worker claim the oldest PENDING DispatchTask
// for its executor type. Returns 204 when no work is available.
func (s *Server) handleCheckoutTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	executorType := model.ExecutorType(r.URL.Query().Get("executor_type"))
	if executorType == "" {
		executorType = model.ExecutorTypeLocal
	}

	task, err := s.store.CheckoutTask(r.Context(), executorType)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if task == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.logger.Debug("task checked out", "task_id", task.ID, "executor_type", executorType)
	respondOK(w, reqID, task)
}

type completeTaskRequest struct {
	State    model.TaskState `json:"state"`
	ExitCode *int            `json:"exit_code"`
	Stdout   string          `json:"stdout"`
	Stderr   string          `json:"stderr"`
}

// handleCompleteTask lets a worker report a task's terminal state and
// output. A task checked out over HTTP never goes through an explicit
// RUNNING report, so a QUEUED task is advanced through RUNNING implicitly
// before the requested transition is validated.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id))
		return
	}

	if task.State == model.TaskStateQueued {
		task.State = model.TaskStateRunning
	}
	if !task.State.CanTransitionTo(req.State) {
		respondError(w, reqID, http.StatusConflict, &model.APIError{
			Code:    model.ErrConflict,
			Message: "cannot transition task from " + string(task.State) + " to " + string(req.State),
		})
		return
	}

	now := time.Now().UTC()
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	task.State = req.State
	task.ExitCode = req.ExitCode
	task.Stdout = req.Stdout
	task.Stderr = req.Stderr
	task.CompletedAt = &now

	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	s.logger.Info("task completed", "task_id", task.ID, "state", task.State, "exit_code", task.ExitCode)
	respondOK(w, reqID, map[string]any{"task_id": task.ID, "state": task.State})
}
