package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/service/recurring"
)

func (s *Server) recurringInput(w http.ResponseWriter, r *http.Request, owner uuid.UUID) (recurring.Input, bool) {
	var req recurringRequest
	if !decode(w, r, &req) {
		return recurring.Input{}, false
	}
	amt, err := s.amountFor(r.Context(), owner, req.AccountID, req.Currency, req.AmountMinor)
	if err != nil {
		s.fail(w, r, err)
		return recurring.Input{}, false
	}
	return recurring.Input{
		OwnerID:     owner,
		AccountID:   req.AccountID,
		Kind:        ledger.Kind(req.Kind),
		Amount:      amt,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Frequency:   ledger.Frequency(req.Frequency),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		OpenEnded:   req.OpenEnded,
	}, true
}

// listRecurring handles GET /v1/recurring
func (s *Server) listRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	list, err := s.recur.List(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toRecurringResponses(list))
}

// listActiveRecurring handles GET /v1/recurring/active
func (s *Server) listActiveRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	list, err := s.recur.ListActive(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toRecurringResponses(list))
}

// postRecurring handles POST /v1/recurring
func (s *Server) postRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	in, ok := s.recurringInput(w, r, owner)
	if !ok {
		return
	}
	def, err := s.recur.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toRecurringResponse(def))
}

// getRecurring handles GET /v1/recurring/{id}
func (s *Server) getRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	def, err := s.recur.Get(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toRecurringResponse(def))
}

// putRecurring handles PUT /v1/recurring/{id} as a full replacement.
func (s *Server) putRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := s.recurringInput(w, r, owner)
	if !ok {
		return
	}
	def, err := s.recur.Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toRecurringResponse(def))
}

// deleteRecurring handles DELETE /v1/recurring/{id}. Materialized movements stay.
func (s *Server) deleteRecurring(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.recur.Delete(r.Context(), owner, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyNow handles POST /v1/recurring/{id}/apply-now
func (s *Server) applyNow(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := s.recur.ApplyNow(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toMovementResponse(m))
}

// skipToday handles POST /v1/recurring/{id}/skip-today
func (s *Server) skipToday(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	exc, err := s.recur.SkipToday(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toExceptionResponse(exc))
}

// postpone handles POST /v1/recurring/{id}/postpone {"new_date": "..."}
func (s *Server) postpone(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req postponeRequest
	if !decode(w, r, &req) {
		return
	}
	exc, err := s.recur.Postpone(r.Context(), owner, id, req.NewDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toExceptionResponse(exc))
}

// listExceptions handles GET /v1/recurring/{id}/exceptions
func (s *Server) listExceptions(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := s.recur.ListExceptions(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]exceptionResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExceptionResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

// postException handles POST /v1/recurring/{id}/exceptions. An existing
// exception for the same original date is replaced.
func (s *Server) postException(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req exceptionRequest
	if !decode(w, r, &req) {
		return
	}
	exc, err := s.recur.AddException(r.Context(), owner, id, recurring.ExceptionInput{
		OriginalDate: req.OriginalDate,
		Action:       ledger.ExceptionAction(req.Action),
		NewDate:      req.NewDate,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toExceptionResponse(exc))
}

// deleteException handles DELETE /v1/recurring/{id}/exceptions/{exceptionID}
func (s *Server) deleteException(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	excID, ok := pathID(w, r, "exceptionID")
	if !ok {
		return
	}
	if err := s.recur.DeleteException(r.Context(), owner, id, excID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// calendar handles GET /v1/calendar?from=&to=
func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	from, ok := queryDate(w, r, "from", true)
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", true)
	if !ok {
		return
	}
	list, err := s.recur.Calendar(r.Context(), owner, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]occurrenceResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOccurrenceResponse(o))
	}
	toJSON(w, http.StatusOK, out)
}
