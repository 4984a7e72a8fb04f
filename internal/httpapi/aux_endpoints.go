package httpapi

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		if err := s.store.Ready(ctx); err != nil {
			s.log.Warn("not ready", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// runMaterialize handles POST /v1/jobs/materialize for external cron hosts.
func (s *Server) runMaterialize(w http.ResponseWriter, r *http.Request) {
	rep, err := s.jobs.Materialize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toMaterializeResponse(rep))
}

// runApplyPending handles POST /v1/jobs/apply-pending
func (s *Server) runApplyPending(w http.ResponseWriter, r *http.Request) {
	rep, err := s.jobs.ApplyPending(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toSweepResponse(rep))
}
