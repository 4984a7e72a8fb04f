package httpapi

import (
	"net/http"

	"github.com/tinoosan/cashflow/internal/dictionary"
	"github.com/tinoosan/cashflow/internal/service/account"
)

// listAccounts handles GET /v1/accounts
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	list, err := s.accounts.List(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

// postAccount handles POST /v1/accounts
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	var req postAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := s.accounts.Create(r.Context(), account.Input{
		OwnerID:      owner,
		Name:         req.Name,
		Type:         req.Type,
		Platform:     req.Platform,
		Currency:     req.Currency,
		InitialMinor: req.InitialBalanceMinor,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// getAccount handles GET /v1/accounts/{id}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	acc, err := s.accounts.Get(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// patchAccount handles PATCH /v1/accounts/{id}. Currency is immutable.
func (s *Server) patchAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req patchAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := s.accounts.Update(r.Context(), owner, id, account.Patch{
		Name:         req.Name,
		Type:         req.Type,
		Platform:     req.Platform,
		InitialMinor: req.InitialBalanceMinor,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// deactivateAccount handles DELETE /v1/accounts/{id} by soft-deactivating (active=false)
func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.ownerID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.accounts.Deactivate(r.Context(), owner, id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listAccountTypes handles GET /v1/dictionary/account-types?class=asset|liability
func (s *Server) listAccountTypes(w http.ResponseWriter, r *http.Request) {
	var class *dictionary.Class
	switch raw := dictionary.Class(r.URL.Query().Get("class")); raw {
	case "":
	case dictionary.ClassAsset, dictionary.ClassLiability:
		class = &raw
	default:
		badRequest(w, "invalid class")
		return
	}
	toJSON(w, http.StatusOK, dictionary.AccountTypes(class))
}
