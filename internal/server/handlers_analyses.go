package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jonathan/jobtrust/internal/schemas"
	"github.com/jonathan/jobtrust/internal/types"
)

const maxBodyBytes = 10 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &ErrValidation{Message: "Invalid request body"}
	}
	return body, nil
}

func analysisID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: "id", Message: "invalid analysis id"}
	}
	return id, nil
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if err := schemas.ValidateAnalysis(body); err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	payload := types.NewPostingAnalysis()
	if err := json.Unmarshal(bytes.TrimSpace(body), payload); err != nil {
		writeError(w, s.logger, r, &ErrValidation{Message: "Invalid request body"})
		return
	}

	a, err := s.store.CreateAnalysis(r.Context(), user.ID, payload)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"analysis": a})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, s.logger, r, &ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	list, err := s.store.ListAnalyses(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": list})
}

func (s *Server) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	a, err := s.store.LatestAnalysis(r.Context(), user.ID)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if a == nil {
		writeError(w, s.logger, r, &ErrAnalysisNotFound{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": a})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	id, err := analysisID(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	a, err := s.store.GetAnalysis(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if a == nil {
		writeError(w, s.logger, r, &ErrAnalysisNotFound{ID: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": a})
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	id, err := analysisID(r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	deleted, err := s.store.DeleteAnalysis(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if !deleted {
		writeError(w, s.logger, r, &ErrAnalysisNotFound{ID: id})
		return
	}
	writeMessage(w, http.StatusOK, "Analysis deleted")
}

func (s *Server) handleClearAnalyses(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	n, err := s.store.ClearAnalyses(r.Context(), user.ID)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "History cleared", "deleted": n})
}

func (s *Server) handleAnalysisStats(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	stats, err := s.store.AnalysisStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
