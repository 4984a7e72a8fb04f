// Package movement owns the balance-mutation rules of the ledger: every
// create, update, delete and pending sweep moves an account balance and the
// movement row together inside one storage transaction.
package movement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/storage"
)

// DefaultPageSize is the sweep page size when none is configured.
const DefaultPageSize = 500

// Store is the persistence surface the service needs.
type Store interface {
	storage.Transactor
	storage.MovementRepo
}

// Input carries the fields of a new movement.
type Input struct {
	OwnerID     uuid.UUID
	AccountID   uuid.UUID
	Kind        ledger.Kind
	Amount      money.Amount
	Description string
	// Date defaults to today when zero.
	Date       date.Date
	CategoryID *uuid.UUID
	// Platform defaults to the account platform when empty.
	Platform string
	Source   *ledger.Source
}

// Patch lists the fields to change; nil fields keep their current value.
type Patch struct {
	AccountID     *uuid.UUID
	Kind          *ledger.Kind
	Amount        *money.Amount
	Description   *string
	Date          *date.Date
	CategoryID    *uuid.UUID
	ClearCategory bool
	Platform      *string
}

// SweepReport summarizes one ApplyPending run.
type SweepReport struct {
	Scanned int
	Applied int
	Failed  int
}

// Service exposes the movement ledger.
type Service interface {
	Create(ctx context.Context, in Input) (ledger.Movement, error)
	// CreateWithin runs Create inside a transaction owned by the caller.
	CreateWithin(ctx context.Context, tx storage.Tx, in Input) (ledger.Movement, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, p Patch) (ledger.Movement, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error)
	List(ctx context.Context, ownerID uuid.UUID, f storage.MovementFilter) ([]ledger.Movement, error)
	AppliedInRange(ctx context.Context, ownerID uuid.UUID, from, to date.Date) ([]ledger.Movement, error)
	ApplyPending(ctx context.Context) (SweepReport, error)
}

type service struct {
	store    Store
	clock    date.Clock
	log      *slog.Logger
	pageSize int
}

// Option configures the service.
type Option func(*service)

// WithPageSize sets how many pending movements are loaded per sweep page.
func WithPageSize(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func New(store Store, clock date.Clock, logger *slog.Logger, opts ...Option) Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{store: store, clock: clock, log: logger, pageSize: DefaultPageSize}
	for _, o := range opts {
		o(s)
	}
	return s
}

func validate(owner uuid.UUID, kind ledger.Kind, amount money.Amount) error {
	if owner == uuid.Nil {
		return errs.Invalid(errs.ErrInvalid, "owner is required")
	}
	if !kind.Valid() {
		return errs.Invalid(errs.ErrInvalidKind, "kind must be income, expense or saving")
	}
	if amount.IsNeg() {
		return errs.Invalid(errs.ErrInvalidAmount, "amount must be >= 0")
	}
	if _, err := ledger.MinorUnits(amount); err != nil {
		return err
	}
	return nil
}

// usable checks that acc can receive a new effect of amount.
func usable(acc ledger.Account, ok bool, amount money.Amount) error {
	if !ok || !acc.Active {
		return errs.ErrInvalidAccount
	}
	if amount.Curr().Code() != acc.Currency {
		return errs.Invalid(errs.ErrCurrencyMismatch, "amount currency "+amount.Curr().Code()+" does not match account currency "+acc.Currency)
	}
	return nil
}

func (s *service) Create(ctx context.Context, in Input) (ledger.Movement, error) {
	var out ledger.Movement
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := s.CreateWithin(ctx, tx, in)
		out = m
		return err
	})
	if err != nil {
		return ledger.Movement{}, err
	}
	return out, nil
}

func (s *service) CreateWithin(ctx context.Context, tx storage.Tx, in Input) (ledger.Movement, error) {
	if err := validate(in.OwnerID, in.Kind, in.Amount); err != nil {
		return ledger.Movement{}, err
	}
	accs, err := tx.LockAccounts(ctx, in.OwnerID, in.AccountID)
	if err != nil {
		return ledger.Movement{}, err
	}
	acc, ok := accs[in.AccountID]
	if err := usable(acc, ok, in.Amount); err != nil {
		return ledger.Movement{}, err
	}
	today := s.clock.Today()
	day := in.Date
	if day.IsZero() {
		day = today
	}
	m := ledger.Movement{
		ID:          uuid.New(),
		OwnerID:     in.OwnerID,
		AccountID:   in.AccountID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        day,
		CategoryID:  in.CategoryID,
		Platform:    in.Platform,
		Applied:     !day.After(today),
		Source:      in.Source,
	}
	if m.Platform == "" {
		m.Platform = acc.Platform
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return ledger.Movement{}, err
	}
	if m.Applied {
		if err := tx.AdjustBalance(ctx, m.AccountID, m.Effect()); err != nil {
			return ledger.Movement{}, err
		}
	}
	return m, nil
}

// Update reverses the stored effect and applies the new one, so balances end
// up as if the movement had been deleted and created again.
func (s *service) Update(ctx context.Context, ownerID, id uuid.UUID, p Patch) (ledger.Movement, error) {
	var out ledger.Movement
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.LockMovement(ctx, id)
		if err != nil {
			return err
		}
		if cur.OwnerID != ownerID {
			return errs.ErrNotFound
		}
		next := cur
		if p.AccountID != nil {
			next.AccountID = *p.AccountID
		}
		if p.Kind != nil {
			next.Kind = *p.Kind
		}
		if p.Amount != nil {
			next.Amount = *p.Amount
		}
		if p.Description != nil {
			next.Description = *p.Description
		}
		if p.Date != nil && !p.Date.IsZero() {
			next.Date = *p.Date
		}
		if p.ClearCategory {
			next.CategoryID = nil
		} else if p.CategoryID != nil {
			next.CategoryID = p.CategoryID
		}
		if err := validate(ownerID, next.Kind, next.Amount); err != nil {
			return err
		}

		ids := []uuid.UUID{cur.AccountID}
		if next.AccountID != cur.AccountID {
			ids = append(ids, next.AccountID)
			if storage.Less(next.AccountID, cur.AccountID) {
				ids[0], ids[1] = ids[1], ids[0]
			}
		}
		accs, err := tx.LockAccounts(ctx, ownerID, ids...)
		if err != nil {
			return err
		}
		target, ok := accs[next.AccountID]
		if err := usable(target, ok, next.Amount); err != nil {
			return err
		}
		if p.Platform != nil {
			next.Platform = *p.Platform
		} else if next.AccountID != cur.AccountID {
			next.Platform = target.Platform
		}
		if next.Platform == "" {
			next.Platform = target.Platform
		}

		if cur.Applied {
			if err := tx.AdjustBalance(ctx, cur.AccountID, cur.Effect().Neg()); err != nil {
				return err
			}
		}
		next.Applied = !next.Date.After(s.clock.Today())
		if next.Applied {
			if err := tx.AdjustBalance(ctx, next.AccountID, next.Effect()); err != nil {
				return err
			}
		}
		if err := tx.UpdateMovement(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return ledger.Movement{}, err
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.store.WithinTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.LockMovement(ctx, id)
		if err != nil {
			return err
		}
		if cur.OwnerID != ownerID {
			return errs.ErrNotFound
		}
		if cur.Applied {
			if _, err := tx.LockAccounts(ctx, ownerID, cur.AccountID); err != nil {
				return err
			}
			if err := tx.AdjustBalance(ctx, cur.AccountID, cur.Effect().Neg()); err != nil {
				return err
			}
		}
		return tx.DeleteMovement(ctx, id)
	})
}

func (s *service) Get(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error) {
	if ownerID == uuid.Nil {
		return ledger.Movement{}, errs.ErrInvalid
	}
	return s.store.GetMovement(ctx, ownerID, id)
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID, f storage.MovementFilter) ([]ledger.Movement, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.store.ListMovements(ctx, ownerID, f)
}

// AppliedInRange returns the owner's applied movements dated within [from, to].
func (s *service) AppliedInRange(ctx context.Context, ownerID uuid.UUID, from, to date.Date) ([]ledger.Movement, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, errs.Invalid(errs.ErrInvalidDate, "to must not be before from")
	}
	applied := true
	return s.List(ctx, ownerID, storage.MovementFilter{From: from, To: to, Applied: &applied})
}

// ApplyPending flips every unapplied movement dated on or before today to
// applied and books its effect. Each movement commits on its own; a failure
// is logged and counted and the sweep goes on. Scanned counts every row
// visited, whatever its outcome.
func (s *service) ApplyPending(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	today := s.clock.Today()
	after := uuid.Nil
	for {
		page, err := s.store.PendingMovements(ctx, today, after, s.pageSize)
		if err != nil {
			return rep, err
		}
		for _, m := range page {
			after = m.ID
			rep.Scanned++
			applied, err := s.applyOne(ctx, m.ID, today)
			switch {
			case err != nil:
				rep.Failed++
				s.log.Warn("apply pending movement failed", "movement_id", m.ID, "account_id", m.AccountID, "err", err)
			case applied:
				rep.Applied++
			}
		}
		if len(page) < s.pageSize || ctx.Err() != nil {
			break
		}
	}
	s.log.Info("pending sweep finished", "date", today.String(), "scanned", rep.Scanned, "applied", rep.Applied, "failed", rep.Failed)
	return rep, nil
}

// applyOne re-reads the movement under lock: it may have been applied, moved
// or deleted since the page was loaded.
func (s *service) applyOne(ctx context.Context, id uuid.UUID, today date.Date) (bool, error) {
	applied := false
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		m, err := tx.LockMovement(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if m.Applied || m.Date.After(today) {
			return nil
		}
		if _, err := tx.LockAccounts(ctx, m.OwnerID, m.AccountID); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, m.AccountID, m.Effect()); err != nil {
			return err
		}
		m.Applied = true
		if err := tx.UpdateMovement(ctx, m); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
