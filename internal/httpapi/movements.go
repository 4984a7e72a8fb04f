package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/storage"
)

// amountFor builds an amount in currency, or in the account currency when
// currency is empty.
func (s *Server) amountFor(ctx context.Context, owner, accountID uuid.UUID, currency string, minor int64) (money.Amount, error) {
	if currency == "" {
		acc, err := s.accounts.Get(ctx, owner, accountID)
		if errors.Is(err, errs.ErrNotFound) {
			return money.Amount{}, errs.ErrInvalidAccount
		}
		if err != nil {
			return money.Amount{}, err
		}
		currency = acc.Currency
	}
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		return money.Amount{}, errs.Invalid(errs.ErrInvalidCurrency, currency)
	}
	return amt, nil
}

// listMovements handles GET /v1/movements?account_id=&from=&to=&applied=
func (s *Server) listMovements(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var f storage.MovementFilter
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid account_id")
			return
		}
		f.AccountID = &id
	}
	if f.From, ok = queryDate(w, r, "from", false); !ok {
		return
	}
	if f.To, ok = queryDate(w, r, "to", false); !ok {
		return
	}
	if f.Applied, ok = queryBool(w, r, "applied"); !ok {
		return
	}
	list, err := s.moves.List(r.Context(), owner, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponses(list))
}

// appliedMovements handles GET /v1/movements/applied?from=&to=
func (s *Server) appliedMovements(w http.ResponseWriter, r *http.Request) {
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
	list, err := s.moves.AppliedInRange(r.Context(), owner, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponses(list))
}

// postMovement handles POST /v1/movements
func (s *Server) postMovement(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req postMovementRequest
	if !decode(w, r, &req) {
		return
	}
	amt, err := s.amountFor(r.Context(), owner, req.AccountID, req.Currency, req.AmountMinor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.moves.Create(r.Context(), movement.Input{
		OwnerID:     owner,
		AccountID:   req.AccountID,
		Kind:        ledger.Kind(req.Kind),
		Amount:      amt,
		Description: req.Description,
		Date:        req.Date,
		CategoryID:  req.CategoryID,
		Platform:    req.Platform,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toMovementResponse(m))
}

// getMovement handles GET /v1/movements/{id}
func (s *Server) getMovement(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := s.moves.Get(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}

// patchMovement handles PATCH /v1/movements/{id}. Balance effects are
// reversed and reapplied by the service.
func (s *Server) patchMovement(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchMovementRequest
	if !decode(w, r, &req) {
		return
	}
	p := movement.Patch{
		AccountID:     req.AccountID,
		Description:   req.Description,
		Date:          req.Date,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Platform:      req.Platform,
	}
	if req.Kind != nil {
		k := ledger.Kind(*req.Kind)
		p.Kind = &k
	}
	switch {
	case req.AmountMinor != nil:
		var accountID uuid.UUID
		if req.AccountID != nil {
			accountID = *req.AccountID
		} else {
			cur, err := s.moves.Get(r.Context(), owner, id)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			accountID = cur.AccountID
		}
		currency := ""
		if req.Currency != nil {
			currency = *req.Currency
		}
		amt, err := s.amountFor(r.Context(), owner, accountID, currency, *req.AmountMinor)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		p.Amount = &amt
	case req.Currency != nil:
		badRequest(w, "currency requires amount_minor")
		return
	}
	m, err := s.moves.Update(r.Context(), owner, id, p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toMovementResponse(m))
}

// deleteMovement handles DELETE /v1/movements/{id}
func (s *Server) deleteMovement(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.moves.Delete(r.Context(), owner, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
