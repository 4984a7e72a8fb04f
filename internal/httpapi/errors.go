package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/cashflow/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "invalid") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }

// fail maps a service error onto the HTTP taxonomy:
// not found 404, invalid input 400, referential violation 422, conflict 409,
// anything else 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.Code(err)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrForbidden):
		if code == "" {
			code = "forbidden"
		}
		writeErr(w, http.StatusUnprocessableEntity, err.Error(), code)
	case errors.Is(err, errs.ErrInvalid):
		if code == "" {
			code = "invalid"
		}
		writeErr(w, http.StatusBadRequest, err.Error(), code)
	default:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
