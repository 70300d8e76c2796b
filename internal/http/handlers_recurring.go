package http

import (
	"errors"
	"fmt"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	def, err := req.toDefinition()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.definitions.Create(r.Context(), def)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDefinitionResponse(created))
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account_id query parameter is required")
		return
	}

	defs, err := s.definitions.ListByAccount(r.Context(), accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponses(defs))
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.definitions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponse(*def))
}

func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	def, err := req.toDefinition()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	def.ID = r.PathValue("id")

	updated, err := s.definitions.Update(r.Context(), def)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionResponse(updated))
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.definitions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type processResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// handleProcessDue runs one due-processing cycle on demand. The same
// cycle also runs on a timer in the recurring worker; triggering it here
// is safe because a processed definition is no longer due.
func (s *Server) handleProcessDue(w http.ResponseWriter, r *http.Request) {
	count, err := s.processor.ProcessDue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Message: fmt.Sprintf("Processed %d recurring transactions", count),
		Count:   count,
	})
}

// writeServiceError distinguishes domain validation failures from
// missing rows and genuine server errors.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidAnchorDay,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrMissingAccount,
		core.ErrMissingCategory,
		core.ErrMissingDate,
		core.ErrInvalidDateRange,
		core.ErrUnknownFrequency,
		core.ErrUnknownKind,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
