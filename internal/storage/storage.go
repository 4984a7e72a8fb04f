// Package storage declares the persistence ports shared by the services.
// Implementations live in the memory and postgres subpackages.
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/ledger"
)

// MovementFilter narrows movement listings. Zero values do not filter.
type MovementFilter struct {
	AccountID *uuid.UUID
	From      date.Date
	To        date.Date
	Applied   *bool
}

// Match reports whether m passes the filter.
func (f MovementFilter) Match(m ledger.Movement) bool {
	if f.AccountID != nil && m.AccountID != *f.AccountID {
		return false
	}
	if !f.From.IsZero() && m.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && m.Date.After(f.To) {
		return false
	}
	if f.Applied != nil && m.Applied != *f.Applied {
		return false
	}
	return true
}

// Tx is a unit of work. Every balance mutation happens through a Tx so the
// movement row and the account balance commit or roll back together.
type Tx interface {
	// LockAccounts returns the owner's accounts among ids and holds them until commit.
	LockAccounts(ctx context.Context, ownerID uuid.UUID, ids ...uuid.UUID) (map[uuid.UUID]ledger.Account, error)
	// AdjustBalance adds delta to the account's current balance.
	AdjustBalance(ctx context.Context, accountID uuid.UUID, delta money.Amount) error
	UpdateAccount(ctx context.Context, a ledger.Account) error

	// LockMovement loads a movement by id (any owner) and holds it until commit.
	LockMovement(ctx context.Context, id uuid.UUID) (ledger.Movement, error)
	// InsertMovement returns errs.ErrConflict when a movement with the same Source exists.
	InsertMovement(ctx context.Context, m ledger.Movement) error
	UpdateMovement(ctx context.Context, m ledger.Movement) error
	DeleteMovement(ctx context.Context, id uuid.UUID) error
	MovementBySource(ctx context.Context, recurringID uuid.UUID, on date.Date) (ledger.Movement, bool, error)

	// UpsertException stores e, replacing any exception with the same
	// (RecurringID, OriginalDate). It returns the stored row.
	UpsertException(ctx context.Context, e ledger.RecurringException) (ledger.RecurringException, error)
}

// Transactor runs fn inside a transaction: fn's error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// AccountRepo reads and writes account records outside balance mutations.
type AccountRepo interface {
	GetAccount(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error)
	ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]ledger.Account, error)
	AccountsByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// MovementRepo reads movements.
type MovementRepo interface {
	GetMovement(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error)
	ListMovements(ctx context.Context, ownerID uuid.UUID, f MovementFilter) ([]ledger.Movement, error)
	// PendingMovements returns up to limit unapplied movements dated on or
	// before asOf, across all owners, with id greater than after, ordered by id.
	PendingMovements(ctx context.Context, asOf date.Date, after uuid.UUID, limit int) ([]ledger.Movement, error)
}

// RecurringRepo reads and writes recurring definitions and their exceptions.
type RecurringRepo interface {
	GetRecurring(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringDefinition, error)
	ListRecurring(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error)
	// ScanRecurring pages through every definition of every owner ordered by id.
	ScanRecurring(ctx context.Context, after uuid.UUID, limit int) ([]ledger.RecurringDefinition, error)
	CreateRecurring(ctx context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error)
	UpdateRecurring(ctx context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error)
	DeleteRecurring(ctx context.Context, ownerID, id uuid.UUID) error

	ListExceptions(ctx context.Context, recurringID uuid.UUID) ([]ledger.RecurringException, error)
	// ExceptionOn returns the exception keyed by (recurringID, original).
	ExceptionOn(ctx context.Context, recurringID uuid.UUID, original date.Date) (ledger.RecurringException, bool, error)
	// RescheduledTo reports whether a postpone exception moves an occurrence of recurringID onto day.
	RescheduledTo(ctx context.Context, recurringID uuid.UUID, day date.Date) (bool, error)
	DeleteException(ctx context.Context, recurringID, exceptionID uuid.UUID) error
}

// Store is the full persistence surface.
type Store interface {
	Transactor
	AccountRepo
	MovementRepo
	RecurringRepo
	Ready(ctx context.Context) error
}

// Less orders uuids bytewise, matching the order postgres uses for the uuid type.
func Less(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
