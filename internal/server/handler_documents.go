package server

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/spacemake-go/mapplan/internal/refregistry"
	"github.com/spacemake-go/mapplan/internal/sampletable"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// handleCreateSampleTable registers a sample table YAML document (§6) and
// returns the id a plan build later references. The document is parsed
// before being persisted so a malformed table is rejected here rather than
// at plan-build time.
func (s *Server) handleCreateSampleTable(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("read body: "+err.Error()))
		return
	}
	if _, err := sampletable.LoadBytes(data); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	id := "st_" + uuid.New().String()
	if err := s.store.SaveSampleTable(r.Context(), id, data); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	s.logger.Info("sample table registered", "id", id)
	respondCreated(w, reqID, map[string]string{"id": id})
}

// handleCreateReferenceRegistry registers a reference registry YAML
// document (§6) and returns the id a plan build later references.
func (s *Server) handleCreateReferenceRegistry(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("read body: "+err.Error()))
		return
	}
	if _, err := refregistry.LoadBytes(data, s.logger); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	id := "reg_" + uuid.New().String()
	if err := s.store.SaveReferenceRegistry(r.Context(), id, data); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	s.logger.Info("reference registry registered", "id", id)
	respondCreated(w, reqID, map[string]string{"id": id})
}
