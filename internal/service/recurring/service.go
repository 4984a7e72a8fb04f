// Package recurring manages recurring definitions, their per-date exceptions
// and the read-only calendar projection built from them.
package recurring

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/schedule"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/storage"
)

// MaxCalendarDays caps the window a single Calendar call may span.
const MaxCalendarDays = 400

type Store interface {
	storage.Transactor
	storage.RecurringRepo
	GetAccount(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error)
	AccountsByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
}

// Ledger creates movements inside an existing transaction.
type Ledger interface {
	CreateWithin(ctx context.Context, tx storage.Tx, in movement.Input) (ledger.Movement, error)
}

// Input holds the user-editable fields of a definition.
type Input struct {
	OwnerID     uuid.UUID
	AccountID   uuid.UUID
	Kind        ledger.Kind
	Amount      money.Amount
	Description string
	CategoryID  *uuid.UUID
	Frequency   ledger.Frequency
	StartDate   date.Date
	EndDate     date.Date
	OpenEnded   bool
}

// ExceptionInput overrides one occurrence.
type ExceptionInput struct {
	OriginalDate date.Date
	Action       ledger.ExceptionAction
	NewDate      date.Date
}

// Status of a projected occurrence.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusSkipped     Status = "skipped"
	StatusPostponed   Status = "postponed"
	StatusRescheduled Status = "rescheduled"
)

// Occurrence is one calendar entry. It is never persisted.
type Occurrence struct {
	RecurringID uuid.UUID
	Date        date.Date
	// OriginalDate is set for rescheduled entries; NewDate for postponed ones.
	OriginalDate date.Date
	NewDate      date.Date
	AccountID    uuid.UUID
	AccountName  string
	Kind         ledger.Kind
	Amount       money.Amount
	Description  string
	CategoryID   *uuid.UUID
	Frequency    ledger.Frequency
	Status       Status
}

type Service interface {
	Create(ctx context.Context, in Input) (ledger.RecurringDefinition, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringDefinition, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error)
	// ListActive returns definitions that can still produce occurrences today or later.
	ListActive(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (ledger.RecurringDefinition, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error

	AddException(ctx context.Context, ownerID, id uuid.UUID, in ExceptionInput) (ledger.RecurringException, error)
	ListExceptions(ctx context.Context, ownerID, id uuid.UUID) ([]ledger.RecurringException, error)
	DeleteException(ctx context.Context, ownerID, id, exceptionID uuid.UUID) error
	SkipToday(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringException, error)
	Postpone(ctx context.Context, ownerID, id uuid.UUID, newDate date.Date) (ledger.RecurringException, error)
	ApplyNow(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error)

	Calendar(ctx context.Context, ownerID uuid.UUID, from, to date.Date) ([]Occurrence, error)
}

type service struct {
	store  Store
	ledger Ledger
	calc   schedule.Calculator
	clock  date.Clock
}

func New(store Store, ledger Ledger, calc schedule.Calculator, clock date.Clock) Service {
	return &service{store: store, ledger: ledger, calc: calc, clock: clock}
}

func (s *service) validate(ctx context.Context, in Input) (ledger.RecurringDefinition, error) {
	if in.OwnerID == uuid.Nil {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalid, "owner is required")
	}
	if !in.Kind.Valid() {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidKind, "kind must be income, expense or saving")
	}
	if !in.Frequency.Valid() {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidFrequency, "frequency must be daily, weekly or monthly")
	}
	if in.Amount.IsNeg() {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidAmount, "amount must be >= 0")
	}
	if _, err := ledger.MinorUnits(in.Amount); err != nil {
		return ledger.RecurringDefinition{}, err
	}
	if in.StartDate.IsZero() {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidDate, "start_date is required")
	}
	end := in.EndDate
	if in.OpenEnded {
		end = date.Date{}
	} else {
		if end.IsZero() {
			return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidDate, "end_date is required unless open_ended")
		}
		if end.Before(in.StartDate) {
			return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrInvalidDate, "end_date must not be before start_date")
		}
	}
	acc, err := s.store.GetAccount(ctx, in.OwnerID, in.AccountID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ledger.RecurringDefinition{}, errs.ErrInvalidAccount
		}
		return ledger.RecurringDefinition{}, err
	}
	if !acc.Active {
		return ledger.RecurringDefinition{}, errs.ErrInvalidAccount
	}
	if in.Amount.Curr().Code() != acc.Currency {
		return ledger.RecurringDefinition{}, errs.Invalid(errs.ErrCurrencyMismatch, "amount currency does not match account currency")
	}
	return ledger.RecurringDefinition{
		OwnerID:     in.OwnerID,
		AccountID:   in.AccountID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     end,
		OpenEnded:   in.OpenEnded,
	}, nil
}

func (s *service) Create(ctx context.Context, in Input) (ledger.RecurringDefinition, error) {
	def, err := s.validate(ctx, in)
	if err != nil {
		return ledger.RecurringDefinition{}, err
	}
	def.ID = uuid.New()
	return s.store.CreateRecurring(ctx, def)
}

func (s *service) Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringDefinition, error) {
	if ownerID == uuid.Nil {
		return ledger.RecurringDefinition{}, errs.ErrInvalid
	}
	return s.store.GetRecurring(ctx, ownerID, id)
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.store.ListRecurring(ctx, ownerID)
}

func (s *service) ListActive(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error) {
	all, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	out := make([]ledger.RecurringDefinition, 0, len(all))
	for _, d := range all {
		if d.ActiveOn(today) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Update replaces the definition fields. Exceptions and materialized movements are kept.
func (s *service) Update(ctx context.Context, id uuid.UUID, in Input) (ledger.RecurringDefinition, error) {
	if _, err := s.store.GetRecurring(ctx, in.OwnerID, id); err != nil {
		return ledger.RecurringDefinition{}, err
	}
	def, err := s.validate(ctx, in)
	if err != nil {
		return ledger.RecurringDefinition{}, err
	}
	def.ID = id
	return s.store.UpdateRecurring(ctx, def)
}

func (s *service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if ownerID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.store.DeleteRecurring(ctx, ownerID, id)
}

func (s *service) AddException(ctx context.Context, ownerID, id uuid.UUID, in ExceptionInput) (ledger.RecurringException, error) {
	def, err := s.store.GetRecurring(ctx, ownerID, id)
	if err != nil {
		return ledger.RecurringException{}, err
	}
	if !in.Action.Valid() {
		return ledger.RecurringException{}, errs.Invalid(errs.ErrInvalid, "action must be skip or postpone")
	}
	if in.OriginalDate.IsZero() {
		return ledger.RecurringException{}, errs.Invalid(errs.ErrInvalidDate, "original_date is required")
	}
	e := ledger.RecurringException{
		ID:           uuid.New(),
		RecurringID:  def.ID,
		OwnerID:      def.OwnerID,
		OriginalDate: in.OriginalDate,
		Action:       in.Action,
	}
	if in.Action == ledger.ActionPostpone {
		if in.NewDate.IsZero() {
			return ledger.RecurringException{}, errs.Invalid(errs.ErrInvalidDate, "new_date is required to postpone")
		}
		if in.NewDate == in.OriginalDate {
			return ledger.RecurringException{}, errs.Invalid(errs.ErrInvalidDate, "new_date must differ from original_date")
		}
		e.NewDate = in.NewDate
	}
	var out ledger.RecurringException
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		stored, err := tx.UpsertException(ctx, e)
		out = stored
		return err
	})
	if err != nil {
		return ledger.RecurringException{}, err
	}
	return out, nil
}

func (s *service) ListExceptions(ctx context.Context, ownerID, id uuid.UUID) ([]ledger.RecurringException, error) {
	if _, err := s.store.GetRecurring(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.store.ListExceptions(ctx, id)
}

func (s *service) DeleteException(ctx context.Context, ownerID, id, exceptionID uuid.UUID) error {
	if _, err := s.store.GetRecurring(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.DeleteException(ctx, id, exceptionID)
}

// SkipToday suppresses today's occurrence.
func (s *service) SkipToday(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringException, error) {
	return s.AddException(ctx, ownerID, id, ExceptionInput{OriginalDate: s.clock.Today(), Action: ledger.ActionSkip})
}

// Postpone moves today's occurrence to newDate, which must lie in the future.
func (s *service) Postpone(ctx context.Context, ownerID, id uuid.UUID, newDate date.Date) (ledger.RecurringException, error) {
	today := s.clock.Today()
	if newDate.IsZero() || !newDate.After(today) {
		return ledger.RecurringException{}, errs.Invalid(errs.ErrInvalidDate, "new_date must be after today")
	}
	return s.AddException(ctx, ownerID, id, ExceptionInput{OriginalDate: today, Action: ledger.ActionPostpone, NewDate: newDate})
}

// ApplyNow books today's occurrence right away and records a skip for today
// so the materializer leaves the date alone. Both writes share a transaction.
// The skip replaces any postponement of today, so the occurrence is not booked
// again on the new date. It returns errs.ErrConflict when today's occurrence
// already exists.
func (s *service) ApplyNow(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error) {
	def, err := s.store.GetRecurring(ctx, ownerID, id)
	if err != nil {
		return ledger.Movement{}, err
	}
	today := s.clock.Today()
	var out ledger.Movement
	err = s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if _, exists, err := tx.MovementBySource(ctx, def.ID, today); err != nil {
			return err
		} else if exists {
			return errs.ErrConflict
		}
		m, err := s.ledger.CreateWithin(ctx, tx, MovementInput(def, today))
		if err != nil {
			return err
		}
		if _, err := tx.UpsertException(ctx, ledger.RecurringException{
			ID:           uuid.New(),
			RecurringID:  def.ID,
			OwnerID:      def.OwnerID,
			OriginalDate: today,
			Action:       ledger.ActionSkip,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return ledger.Movement{}, err
	}
	return out, nil
}

// MovementInput builds the movement materialized from def on day.
func MovementInput(def ledger.RecurringDefinition, day date.Date) movement.Input {
	return movement.Input{
		OwnerID:     def.OwnerID,
		AccountID:   def.AccountID,
		Kind:        def.Kind,
		Amount:      def.Amount,
		Description: def.Description,
		Date:        day,
		CategoryID:  def.CategoryID,
		Source:      &ledger.Source{RecurringID: def.ID, Date: day},
	}
}

// Calendar projects every definition of the owner over [from, to] with
// exceptions folded in. Nothing is written.
func (s *service) Calendar(ctx context.Context, ownerID uuid.UUID, from, to date.Date) ([]Occurrence, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, errs.Invalid(errs.ErrInvalidDate, "from and to are required and to must not be before from")
	}
	if to.DaysSince(from) > MaxCalendarDays {
		return nil, errs.Invalid(errs.ErrInvalidDate, "calendar window is too large")
	}
	defs, err := s.store.ListRecurring(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.AccountID)
	}
	accs, err := s.store.AccountsByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Occurrence, 0)
	for _, def := range defs {
		excs, err := s.store.ListExceptions(ctx, def.ID)
		if err != nil {
			return nil, err
		}
		byOriginal := make(map[date.Date]ledger.RecurringException, len(excs))
		for _, e := range excs {
			byOriginal[e.OriginalDate] = e
		}
		base := Occurrence{
			RecurringID: def.ID,
			AccountID:   def.AccountID,
			AccountName: accs[def.AccountID].Name,
			Kind:        def.Kind,
			Amount:      def.Amount,
			Description: def.Description,
			CategoryID:  def.CategoryID,
			Frequency:   def.Frequency,
		}
		for d := range s.calc.DueDates(def, from, to) {
			o := base
			o.Date = d
			o.Status = StatusScheduled
			if e, ok := byOriginal[d]; ok {
				switch e.Action {
				case ledger.ActionSkip:
					o.Status = StatusSkipped
				case ledger.ActionPostpone:
					o.Status = StatusPostponed
					o.NewDate = e.NewDate
				}
			}
			out = append(out, o)
		}
		for _, e := range excs {
			if e.Action != ledger.ActionPostpone || e.NewDate.Before(from) || e.NewDate.After(to) {
				continue
			}
			o := base
			o.Date = e.NewDate
			o.OriginalDate = e.OriginalDate
			o.Status = StatusRescheduled
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return storage.Less(out[i].RecurringID, out[j].RecurringID)
	})
	return out, nil
}
