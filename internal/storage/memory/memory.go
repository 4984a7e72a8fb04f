// Package memory provides a simple in-memory implementation used for development and tests.
// Transactions hold the write lock for their whole duration and keep an undo log,
// so a failed unit of work leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/storage"
)

type sourceKey struct {
	RecurringID uuid.UUID
	Date        date.Date
}

type exceptionKey struct {
	RecurringID  uuid.UUID
	OriginalDate date.Date
}

// Store is an in-memory implementation of storage.Store.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]struct{}
	accounts   map[uuid.UUID]ledger.Account
	movements  map[uuid.UUID]ledger.Movement
	sources    map[sourceKey]uuid.UUID
	recurring  map[uuid.UUID]ledger.RecurringDefinition
	exceptions map[uuid.UUID]ledger.RecurringException
	excKeys    map[exceptionKey]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = map[uuid.UUID]struct{}{}
	s.accounts = map[uuid.UUID]ledger.Account{}
	s.movements = map[uuid.UUID]ledger.Movement{}
	s.sources = map[sourceKey]uuid.UUID{}
	s.recurring = map[uuid.UUID]ledger.RecurringDefinition{}
	s.exceptions = map[uuid.UUID]ledger.RecurringException{}
	s.excKeys = map[exceptionKey]uuid.UUID{}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedUser(u ledger.User)       { s.mu.Lock(); s.users[u.ID] = struct{}{}; s.mu.Unlock() }
func (s *Store) SeedAccount(a ledger.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }
func (s *Store) Reset()                       { s.mu.Lock(); s.reset(); s.mu.Unlock() }

// Ready always succeeds for the in-memory store.
func (s *Store) Ready(context.Context) error { return nil }

// WithinTx runs fn while holding the write lock. Any error replays the undo log.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// --- Account reads/writes ---

// GetAccount returns a user's account by ID.
func (s *Store) GetAccount(_ context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok || a.OwnerID != ownerID {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// ListAccounts returns the owner's accounts sorted by name.
func (s *Store) ListAccounts(_ context.Context, ownerID uuid.UUID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0)
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return storage.Less(out[i].ID, out[j].ID)
	})
	return out, nil
}

// AccountsByIDs returns the owner's accounts filtered by ids.
func (s *Store) AccountsByIDs(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountsByIDsLocked(ownerID, ids), nil
}

func (s *Store) accountsByIDsLocked(ownerID uuid.UUID, ids []uuid.UUID) map[uuid.UUID]ledger.Account {
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok && a.OwnerID == ownerID {
			out[id] = a
		}
	}
	return out
}

// CreateAccount persists a new account.
func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return ledger.Account{}, errs.ErrConflict
	}
	s.accounts[a.ID] = a
	return a, nil
}

// --- Movement reads ---

// GetMovement returns a single movement for an owner.
func (s *Store) GetMovement(_ context.Context, ownerID, id uuid.UUID) (ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movements[id]
	if !ok || m.OwnerID != ownerID {
		return ledger.Movement{}, errs.ErrNotFound
	}
	return m, nil
}

// ListMovements returns the owner's movements ordered by (date, id).
func (s *Store) ListMovements(_ context.Context, ownerID uuid.UUID, f storage.MovementFilter) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Movement, 0)
	for _, m := range s.movements {
		if m.OwnerID == ownerID && f.Match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return storage.Less(out[i].ID, out[j].ID)
	})
	return out, nil
}

// PendingMovements implements storage.MovementRepo.
func (s *Store) PendingMovements(_ context.Context, asOf date.Date, after uuid.UUID, limit int) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Movement, 0)
	for _, m := range s.movements {
		if m.Applied || m.Date.After(asOf) || !storage.Less(after, m.ID) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return storage.Less(out[i].ID, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Recurring definitions ---

func (s *Store) GetRecurring(_ context.Context, ownerID, id uuid.UUID) (ledger.RecurringDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.recurring[id]
	if !ok || d.OwnerID != ownerID {
		return ledger.RecurringDefinition{}, errs.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListRecurring(_ context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.RecurringDefinition, 0)
	for _, d := range s.recurring {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].StartDate.Compare(out[j].StartDate); c != 0 {
			return c < 0
		}
		return storage.Less(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) ScanRecurring(_ context.Context, after uuid.UUID, limit int) ([]ledger.RecurringDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.RecurringDefinition, 0)
	for _, d := range s.recurring {
		if storage.Less(after, d.ID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return storage.Less(out[i].ID, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateRecurring(_ context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recurring[d.ID]; exists {
		return ledger.RecurringDefinition{}, errs.ErrConflict
	}
	s.recurring[d.ID] = d
	return d, nil
}

func (s *Store) UpdateRecurring(_ context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recurring[d.ID]
	if !ok || cur.OwnerID != d.OwnerID {
		return ledger.RecurringDefinition{}, errs.ErrNotFound
	}
	s.recurring[d.ID] = d
	return d, nil
}

// DeleteRecurring removes the definition and its exceptions. Materialized movements stay.
func (s *Store) DeleteRecurring(_ context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.recurring[id]
	if !ok || cur.OwnerID != ownerID {
		return errs.ErrNotFound
	}
	delete(s.recurring, id)
	for eid, e := range s.exceptions {
		if e.RecurringID == id {
			delete(s.exceptions, eid)
			delete(s.excKeys, exceptionKey{e.RecurringID, e.OriginalDate})
		}
	}
	return nil
}

// --- Exceptions ---

func (s *Store) ListExceptions(_ context.Context, recurringID uuid.UUID) ([]ledger.RecurringException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.RecurringException, 0)
	for _, e := range s.exceptions {
		if e.RecurringID == recurringID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalDate.Before(out[j].OriginalDate) })
	return out, nil
}

func (s *Store) ExceptionOn(_ context.Context, recurringID uuid.UUID, original date.Date) (ledger.RecurringException, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.excKeys[exceptionKey{recurringID, original}]
	if !ok {
		return ledger.RecurringException{}, false, nil
	}
	return s.exceptions[id], true, nil
}

func (s *Store) RescheduledTo(_ context.Context, recurringID uuid.UUID, day date.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.exceptions {
		if e.RecurringID == recurringID && e.Action == ledger.ActionPostpone && e.NewDate == day {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteException(_ context.Context, recurringID, exceptionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exceptions[exceptionID]
	if !ok || e.RecurringID != recurringID {
		return errs.ErrNotFound
	}
	delete(s.exceptions, exceptionID)
	delete(s.excKeys, exceptionKey{e.RecurringID, e.OriginalDate})
	return nil
}

// Tx mutates the store directly while the parent WithinTx holds the lock.
type Tx struct {
	s    *Store
	undo []func()
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *Tx) saveAccount(id uuid.UUID) {
	prev, existed := t.s.accounts[id]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.accounts[id] = prev
		} else {
			delete(t.s.accounts, id)
		}
	})
}

func (t *Tx) saveMovement(id uuid.UUID) {
	prev, existed := t.s.movements[id]
	t.undo = append(t.undo, func() {
		if existed {
			t.s.movements[id] = prev
			if prev.Source != nil {
				t.s.sources[sourceKey{prev.Source.RecurringID, prev.Source.Date}] = id
			}
		} else {
			delete(t.s.movements, id)
		}
	})
}

func (t *Tx) LockAccounts(_ context.Context, ownerID uuid.UUID, ids ...uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	return t.s.accountsByIDsLocked(ownerID, ids), nil
}

func (t *Tx) AdjustBalance(_ context.Context, accountID uuid.UUID, delta money.Amount) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return errs.ErrNotFound
	}
	if delta.Curr().Code() != a.CurrentBalance.Curr().Code() {
		return errs.Invalid(errs.ErrCurrencyMismatch, "account currency differs from amount currency")
	}
	next, err := a.CurrentBalance.Add(delta)
	if err != nil {
		return errs.Invalid(errs.ErrInvalidAmount, err.Error())
	}
	if _, err := ledger.MinorUnits(next); err != nil {
		return err
	}
	t.saveAccount(accountID)
	a.CurrentBalance = next
	t.s.accounts[accountID] = a
	return nil
}

func (t *Tx) UpdateAccount(_ context.Context, a ledger.Account) error {
	cur, ok := t.s.accounts[a.ID]
	if !ok || cur.OwnerID != a.OwnerID {
		return errs.ErrNotFound
	}
	t.saveAccount(a.ID)
	t.s.accounts[a.ID] = a
	return nil
}

func (t *Tx) LockMovement(_ context.Context, id uuid.UUID) (ledger.Movement, error) {
	m, ok := t.s.movements[id]
	if !ok {
		return ledger.Movement{}, errs.ErrNotFound
	}
	return m, nil
}

func (t *Tx) InsertMovement(_ context.Context, m ledger.Movement) error {
	if _, exists := t.s.movements[m.ID]; exists {
		return errs.ErrConflict
	}
	if m.Source != nil {
		key := sourceKey{m.Source.RecurringID, m.Source.Date}
		if _, dup := t.s.sources[key]; dup {
			return errs.ErrConflict
		}
		t.s.sources[key] = m.ID
		t.undo = append(t.undo, func() { delete(t.s.sources, key) })
	}
	t.saveMovement(m.ID)
	t.s.movements[m.ID] = m
	return nil
}

// UpdateMovement replaces the row; provenance is immutable and kept from the stored row.
func (t *Tx) UpdateMovement(_ context.Context, m ledger.Movement) error {
	cur, ok := t.s.movements[m.ID]
	if !ok {
		return errs.ErrNotFound
	}
	m.Source = cur.Source
	t.saveMovement(m.ID)
	t.s.movements[m.ID] = m
	return nil
}

func (t *Tx) DeleteMovement(_ context.Context, id uuid.UUID) error {
	cur, ok := t.s.movements[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.saveMovement(id)
	delete(t.s.movements, id)
	if cur.Source != nil {
		key := sourceKey{cur.Source.RecurringID, cur.Source.Date}
		delete(t.s.sources, key)
	}
	return nil
}

func (t *Tx) MovementBySource(_ context.Context, recurringID uuid.UUID, on date.Date) (ledger.Movement, bool, error) {
	id, ok := t.s.sources[sourceKey{recurringID, on}]
	if !ok {
		return ledger.Movement{}, false, nil
	}
	return t.s.movements[id], true, nil
}

func (t *Tx) UpsertException(_ context.Context, e ledger.RecurringException) (ledger.RecurringException, error) {
	key := exceptionKey{e.RecurringID, e.OriginalDate}
	if prevID, ok := t.s.excKeys[key]; ok {
		prev := t.s.exceptions[prevID]
		e.ID = prevID
		t.undo = append(t.undo, func() { t.s.exceptions[prevID] = prev })
	} else {
		t.s.excKeys[key] = e.ID
		id := e.ID
		t.undo = append(t.undo, func() {
			delete(t.s.exceptions, id)
			delete(t.s.excKeys, key)
		})
	}
	t.s.exceptions[e.ID] = e
	return e, nil
}
