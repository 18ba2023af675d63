package server

import (
	"net/http"

	"github.com/jonathan/jobtrust/internal/schemas"
	"github.com/jonathan/jobtrust/internal/types"
)

// handleRankJobs ranks a submitted batch for the caller's stored profession.
func (s *Server) handleRankJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	req, err := schemas.DecodeRankRequest(body)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	if len(req.Analyses) == 0 {
		writeJSON(w, http.StatusOK, []types.Evaluation{})
		return
	}

	evals := s.ranker.RankJSON(r.Context(), req.Analyses, user.UserContext())
	writeJSON(w, http.StatusOK, evals)
}

// handleRankHistory ranks the caller's saved analyses.
func (s *Server) handleRankHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.auth.currentUser(w, r)
	if !ok {
		return
	}
	list, err := s.store.ListAnalyses(r.Context(), user.ID, 0)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}

	batch := make([]types.PostingAnalysis, len(list))
	for i := range list {
		batch[i] = *list[i].AsPosting()
	}
	writeJSON(w, http.StatusOK, s.ranker.Rank(r.Context(), batch, user.UserContext()))
}
