package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/cornell-notes/internal/jobs"
)

type jobResponse struct {
	Job jobs.Job `json:"job"`
}

func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	if s.deps.Captures == nil {
		writeError(w, http.StatusServiceUnavailable, "async capture disabled")
		return
	}
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	job, err := s.deps.Captures.Submit(r.Context(), req.URL, req.Viewport)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/captures/"+job.ID)
	writeJSON(w, http.StatusAccepted, jobResponse{Job: job})
}

func (s *Server) getCapture(w http.ResponseWriter, r *http.Request) {
	if s.deps.Captures == nil {
		writeError(w, http.StatusServiceUnavailable, "async capture disabled")
		return
	}
	job, err := s.deps.Captures.Job(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Job: job})
}
