// Package materializer turns due recurring occurrences into movements.
//
// For each definition and day:
//
//	forced     = some postpone exception moves an occurrence onto day
//	suppressed = the exception on day is a skip or a postpone
//	materialize when forced || (due(day) && !suppressed)
//
// Idempotency rests on the movement provenance (recurring id, day): the
// existence check and the insert run in one transaction, and a unique key
// catches concurrent runs.
package materializer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/schedule"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/service/recurring"
	"github.com/tinoosan/cashflow/internal/storage"
)

const DefaultPageSize = 200

type Store interface {
	storage.Transactor
	ScanRecurring(ctx context.Context, after uuid.UUID, limit int) ([]ledger.RecurringDefinition, error)
	ExceptionOn(ctx context.Context, recurringID uuid.UUID, original date.Date) (ledger.RecurringException, bool, error)
	RescheduledTo(ctx context.Context, recurringID uuid.UUID, day date.Date) (bool, error)
}

type Ledger interface {
	CreateWithin(ctx context.Context, tx storage.Tx, in movement.Input) (ledger.Movement, error)
}

// Report summarizes one run. Scanned counts every definition visited.
type Report struct {
	Date         date.Date
	Scanned      int
	Materialized int
	// Skipped counts definitions not due, suppressed, or already materialized.
	Skipped int
	Failed  int
}

type Materializer struct {
	store    Store
	ledger   Ledger
	calc     schedule.Calculator
	clock    date.Clock
	log      *slog.Logger
	pageSize int
}

func New(store Store, ledger Ledger, calc schedule.Calculator, clock date.Clock, logger *slog.Logger, pageSize int) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Materializer{store: store, ledger: ledger, calc: calc, clock: clock, log: logger, pageSize: pageSize}
}

// RunForToday materializes the clock's current day.
func (m *Materializer) RunForToday(ctx context.Context) (Report, error) {
	return m.RunFor(ctx, m.clock.Today())
}

// RunFor walks every definition page by page. Per-definition failures are
// logged and counted; only a failure to load a page aborts the run.
func (m *Materializer) RunFor(ctx context.Context, day date.Date) (Report, error) {
	rep := Report{Date: day}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		page, err := m.store.ScanRecurring(ctx, after, m.pageSize)
		if err != nil {
			return rep, err
		}
		for _, def := range page {
			after = def.ID
			rep.Scanned++
			created, err := m.materialize(ctx, def, day)
			switch {
			case err != nil:
				rep.Failed++
				m.log.Error("materialize failed", "recurring_id", def.ID, "owner_id", def.OwnerID, "date", day.String(), "err", err)
			case created:
				rep.Materialized++
			default:
				rep.Skipped++
			}
		}
		if len(page) < m.pageSize {
			break
		}
	}
	m.log.Info("materializer finished", "date", day.String(), "scanned", rep.Scanned, "materialized", rep.Materialized, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

// ShouldMaterialize reports whether def produces a movement on day.
func (m *Materializer) ShouldMaterialize(ctx context.Context, def ledger.RecurringDefinition, day date.Date) (bool, error) {
	forced, err := m.store.RescheduledTo(ctx, def.ID, day)
	if err != nil {
		return false, err
	}
	if forced {
		return true, nil
	}
	if !m.calc.IsDueToday(def, day) {
		return false, nil
	}
	exc, found, err := m.store.ExceptionOn(ctx, def.ID, day)
	if err != nil {
		return false, err
	}
	suppressed := found && (exc.Action == ledger.ActionSkip || exc.Action == ledger.ActionPostpone)
	return !suppressed, nil
}

func (m *Materializer) materialize(ctx context.Context, def ledger.RecurringDefinition, day date.Date) (bool, error) {
	ok, err := m.ShouldMaterialize(ctx, def, day)
	if err != nil || !ok {
		return false, err
	}
	created := false
	err = m.store.WithinTx(ctx, func(tx storage.Tx) error {
		if _, exists, err := tx.MovementBySource(ctx, def.ID, day); err != nil || exists {
			return err
		}
		mv, err := m.ledger.CreateWithin(ctx, tx, recurring.MovementInput(def, day))
		if err != nil {
			return err
		}
		created = true
		m.log.Debug("materialized occurrence", "recurring_id", def.ID, "movement_id", mv.ID, "date", day.String())
		return nil
	})
	if errors.Is(err, errs.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return created, nil
}
