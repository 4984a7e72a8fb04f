package httpapi

import (
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/service/materializer"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/service/recurring"
)

// Accounts

type postAccountRequest struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Platform            string `json:"platform"`
	Currency            string `json:"currency"`
	InitialBalanceMinor int64  `json:"initial_balance_minor"`
}

type patchAccountRequest struct {
	Name                *string `json:"name"`
	Type                *string `json:"type"`
	Platform            *string `json:"platform"`
	InitialBalanceMinor *int64  `json:"initial_balance_minor"`
}

type accountResponse struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	Name                string    `json:"name"`
	Type                string    `json:"type"`
	Platform            string    `json:"platform"`
	Currency            string    `json:"currency"`
	InitialBalanceMinor int64     `json:"initial_balance_minor"`
	CurrentBalanceMinor int64     `json:"current_balance_minor"`
	Active              bool      `json:"active"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:                  a.ID,
		UserID:              a.OwnerID,
		Name:                a.Name,
		Type:                a.Type,
		Platform:            a.Platform,
		Currency:            a.Currency,
		InitialBalanceMinor: minorUnits(a.InitialBalance),
		CurrentBalanceMinor: minorUnits(a.CurrentBalance),
		Active:              a.Active,
	}
}

// Movements

type postMovementRequest struct {
	AccountID   uuid.UUID  `json:"account_id"`
	Kind        string     `json:"kind"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	Date        date.Date  `json:"date"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Platform    string     `json:"platform"`
}

type patchMovementRequest struct {
	AccountID     *uuid.UUID `json:"account_id"`
	Kind          *string    `json:"kind"`
	AmountMinor   *int64     `json:"amount_minor"`
	Currency      *string    `json:"currency"`
	Description   *string    `json:"description"`
	Date          *date.Date `json:"date"`
	CategoryID    *uuid.UUID `json:"category_id"`
	ClearCategory bool       `json:"clear_category"`
	Platform      *string    `json:"platform"`
}

type sourceResponse struct {
	RecurringID uuid.UUID `json:"recurring_id"`
	Date        date.Date `json:"date"`
}

type movementResponse struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Kind        ledger.Kind     `json:"kind"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Date        date.Date       `json:"date"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Platform    string          `json:"platform"`
	Applied     bool            `json:"applied"`
	Source      *sourceResponse `json:"source,omitempty"`
}

func toMovementResponse(m ledger.Movement) movementResponse {
	resp := movementResponse{
		ID:          m.ID,
		UserID:      m.OwnerID,
		AccountID:   m.AccountID,
		Kind:        m.Kind,
		AmountMinor: minorUnits(m.Amount),
		Currency:    m.Amount.Curr().Code(),
		Description: m.Description,
		Date:        m.Date,
		CategoryID:  m.CategoryID,
		Platform:    m.Platform,
		Applied:     m.Applied,
	}
	if m.Source != nil {
		resp.Source = &sourceResponse{RecurringID: m.Source.RecurringID, Date: m.Source.Date}
	}
	return resp
}

func toMovementResponses(list []ledger.Movement) []movementResponse {
	out := make([]movementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMovementResponse(m))
	}
	return out
}

// Recurring

type recurringRequest struct {
	AccountID   uuid.UUID  `json:"account_id"`
	Kind        string     `json:"kind"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Frequency   string     `json:"frequency"`
	StartDate   date.Date  `json:"start_date"`
	EndDate     date.Date  `json:"end_date"`
	OpenEnded   bool       `json:"open_ended"`
}

type recurringResponse struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	AccountID   uuid.UUID        `json:"account_id"`
	Kind        ledger.Kind      `json:"kind"`
	AmountMinor int64            `json:"amount_minor"`
	Currency    string           `json:"currency"`
	Description string           `json:"description"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	Frequency   ledger.Frequency `json:"frequency"`
	StartDate   date.Date        `json:"start_date"`
	EndDate     date.Date        `json:"end_date"`
	OpenEnded   bool             `json:"open_ended"`
}

func toRecurringResponse(d ledger.RecurringDefinition) recurringResponse {
	return recurringResponse{
		ID:          d.ID,
		UserID:      d.OwnerID,
		AccountID:   d.AccountID,
		Kind:        d.Kind,
		AmountMinor: minorUnits(d.Amount),
		Currency:    d.Amount.Curr().Code(),
		Description: d.Description,
		CategoryID:  d.CategoryID,
		Frequency:   d.Frequency,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		OpenEnded:   d.OpenEnded,
	}
}

func toRecurringResponses(list []ledger.RecurringDefinition) []recurringResponse {
	out := make([]recurringResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toRecurringResponse(d))
	}
	return out
}

type exceptionRequest struct {
	OriginalDate date.Date `json:"original_date"`
	Action       string    `json:"action"`
	NewDate      date.Date `json:"new_date"`
}

type postponeRequest struct {
	NewDate date.Date `json:"new_date"`
}

type exceptionResponse struct {
	ID           uuid.UUID              `json:"id"`
	RecurringID  uuid.UUID              `json:"recurring_id"`
	OriginalDate date.Date              `json:"original_date"`
	Action       ledger.ExceptionAction `json:"action"`
	NewDate      date.Date              `json:"new_date"`
}

func toExceptionResponse(e ledger.RecurringException) exceptionResponse {
	return exceptionResponse{
		ID:           e.ID,
		RecurringID:  e.RecurringID,
		OriginalDate: e.OriginalDate,
		Action:       e.Action,
		NewDate:      e.NewDate,
	}
}

type occurrenceResponse struct {
	RecurringID  uuid.UUID        `json:"recurring_id"`
	Date         date.Date        `json:"date"`
	OriginalDate date.Date        `json:"original_date"`
	NewDate      date.Date        `json:"new_date"`
	AccountID    uuid.UUID        `json:"account_id"`
	AccountName  string           `json:"account_name"`
	Kind         ledger.Kind      `json:"kind"`
	AmountMinor  int64            `json:"amount_minor"`
	Currency     string           `json:"currency"`
	Description  string           `json:"description"`
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
	Frequency    ledger.Frequency `json:"frequency"`
	Status       recurring.Status `json:"status"`
}

func toOccurrenceResponse(o recurring.Occurrence) occurrenceResponse {
	return occurrenceResponse{
		RecurringID:  o.RecurringID,
		Date:         o.Date,
		OriginalDate: o.OriginalDate,
		NewDate:      o.NewDate,
		AccountID:    o.AccountID,
		AccountName:  o.AccountName,
		Kind:         o.Kind,
		AmountMinor:  minorUnits(o.Amount),
		Currency:     o.Amount.Curr().Code(),
		Description:  o.Description,
		CategoryID:   o.CategoryID,
		Frequency:    o.Frequency,
		Status:       o.Status,
	}
}

// Jobs

type materializeResponse struct {
	Date         date.Date `json:"date"`
	Scanned      int       `json:"scanned"`
	Materialized int       `json:"materialized"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
}

func toMaterializeResponse(r materializer.Report) materializeResponse {
	return materializeResponse{Date: r.Date, Scanned: r.Scanned, Materialized: r.Materialized, Skipped: r.Skipped, Failed: r.Failed}
}

type sweepResponse struct {
	Scanned int `json:"scanned"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

func toSweepResponse(r movement.SweepReport) sweepResponse {
	return sweepResponse{Scanned: r.Scanned, Applied: r.Applied, Failed: r.Failed}
}

// Helpers

func minorUnits(a money.Amount) int64 {
	m, _ := a.MinorUnits()
	return m
}

// pathID parses the named URL parameter as a UUID, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(w http.ResponseWriter, r *http.Request, name string, required bool) (date.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			badRequest(w, name+" is required")
			return date.Date{}, false
		}
		return date.Date{}, true
	}
	d, err := date.Parse(raw)
	if err != nil {
		badRequest(w, "invalid "+name)
		return date.Date{}, false
	}
	return d, true
}

func queryBool(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(w, "invalid "+name)
		return nil, false
	}
	return &v, true
}
