package movement

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/storage"
	"github.com/tinoosan/cashflow/internal/storage/memory"
)

var today = date.New(2025, 3, 15)

func usd(minor int64) money.Amount {
	a, err := money.NewAmountFromMinorUnits("USD", minor)
	if err != nil {
		panic(err)
	}
	return a
}

type fixture struct {
	store *memory.Store
	clock *date.ManualClock
	svc   Service
	owner uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	clock := date.NewManualClock(today)
	owner := uuid.New()
	st.SeedUser(ledger.User{ID: owner})
	return &fixture{store: st, clock: clock, svc: New(st, clock, nil), owner: owner}
}

func (f *fixture) account(t *testing.T, initial int64) ledger.Account {
	t.Helper()
	a := ledger.Account{
		ID: uuid.New(), OwnerID: f.owner, Name: "Checking", Type: "bank", Platform: "Monzo",
		Currency: "USD", InitialBalance: usd(initial), CurrentBalance: usd(initial), Active: true,
	}
	f.store.SeedAccount(a)
	return a
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), f.owner, id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	minor, _ := a.CurrentBalance.MinorUnits()
	return minor
}

// expected recomputes initial + sum(applied effects) from the stored movements.
func (f *fixture) expected(t *testing.T, acc ledger.Account) int64 {
	t.Helper()
	total, _ := acc.InitialBalance.MinorUnits()
	list, err := f.store.ListMovements(context.Background(), f.owner, storage.MovementFilter{AccountID: &acc.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range list {
		if !m.Applied {
			continue
		}
		minor, _ := m.Effect().MinorUnits()
		total += minor
	}
	return total
}

func TestScenario_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 10000)

	m, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindExpense, Amount: usd(3000), Date: today})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !m.Applied {
		t.Fatalf("movement dated today must be applied")
	}
	if got := f.balance(t, acc.ID); got != 7000 {
		t.Fatalf("after create balance=%d want 7000", got)
	}
	if m.Platform != "Monzo" {
		t.Fatalf("platform should default to account platform, got %q", m.Platform)
	}

	amt := usd(1000)
	if _, err := f.svc.Update(ctx, f.owner, m.ID, Patch{Amount: &amt}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.balance(t, acc.ID); got != 9000 {
		t.Fatalf("after update balance=%d want 9000", got)
	}

	if err := f.svc.Delete(ctx, f.owner, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.balance(t, acc.ID); got != 10000 {
		t.Fatalf("after delete balance=%d want 10000", got)
	}
}

func TestRoundTrip_AppliedAndPending(t *testing.T) {
	cases := []struct {
		name string
		day  date.Date
		kind ledger.Kind
	}{
		{"applied income", today, ledger.KindIncome},
		{"applied saving in past", today.AddDays(-10), ledger.KindSaving},
		{"pending expense", today.AddDays(3), ledger.KindExpense},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			acc := f.account(t, 5000)
			m, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: tc.kind, Amount: usd(1234), Date: tc.day})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if got, want := f.balance(t, acc.ID), f.expected(t, acc); got != want {
				t.Fatalf("invariant broken: %d != %d", got, want)
			}
			if err := f.svc.Delete(ctx, f.owner, m.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if got := f.balance(t, acc.ID); got != 5000 {
				t.Fatalf("balance=%d want 5000", got)
			}
		})
	}
}

func TestUpdate_ChangesAccountAndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 10000)
	b := f.account(t, 2000)

	m, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: a.ID, Kind: ledger.KindIncome, Amount: usd(500)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.balance(t, a.ID); got != 10500 {
		t.Fatalf("a=%d", got)
	}

	// Move to b: a is restored, b receives the effect.
	if _, err := f.svc.Update(ctx, f.owner, m.ID, Patch{AccountID: &b.ID}); err != nil {
		t.Fatalf("update account: %v", err)
	}
	if f.balance(t, a.ID) != 10000 || f.balance(t, b.ID) != 2500 {
		t.Fatalf("balances a=%d b=%d", f.balance(t, a.ID), f.balance(t, b.ID))
	}

	// Push into the future: the effect is reversed and the movement goes pending.
	future := today.AddDays(2)
	upd, err := f.svc.Update(ctx, f.owner, m.ID, Patch{Date: &future})
	if err != nil {
		t.Fatalf("update date: %v", err)
	}
	if upd.Applied || f.balance(t, b.ID) != 2000 {
		t.Fatalf("expected pending with no effect: applied=%v b=%d", upd.Applied, f.balance(t, b.ID))
	}
	for _, acc := range []ledger.Account{a, b} {
		if got, want := f.balance(t, acc.ID), f.expected(t, acc); got != want {
			t.Fatalf("invariant broken for %s: %d != %d", acc.ID, got, want)
		}
	}
}

func TestPendingTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 1000)

	m, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindExpense, Amount: usd(300), Date: today.AddDays(1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Applied || f.balance(t, acc.ID) != 1000 {
		t.Fatalf("future movement must stay pending")
	}

	rep, err := f.svc.ApplyPending(ctx)
	if err != nil || rep.Scanned != 0 {
		t.Fatalf("sweep before due: %+v %v", rep, err)
	}

	f.clock.Advance(1)
	rep, err = f.svc.ApplyPending(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Scanned != 1 || rep.Applied != 1 || rep.Failed != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := f.balance(t, acc.ID); got != 700 {
		t.Fatalf("balance=%d want 700", got)
	}
	got, _ := f.svc.Get(ctx, f.owner, m.ID)
	if !got.Applied {
		t.Fatalf("movement not flipped to applied")
	}

	// A second sweep finds nothing; the effect is booked once.
	rep, _ = f.svc.ApplyPending(ctx)
	if rep.Scanned != 0 || f.balance(t, acc.ID) != 700 {
		t.Fatalf("second sweep changed state: %+v balance=%d", rep, f.balance(t, acc.ID))
	}
}

func TestApplyPending_PagesAndIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc = New(f.store, f.clock, nil, WithPageSize(2))
	acc := f.account(t, 0)
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: usd(100), Date: today.AddDays(1)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// A pending movement whose account vanished cannot be applied.
	orphan := ledger.Movement{ID: uuid.New(), OwnerID: f.owner, AccountID: uuid.New(), Kind: ledger.KindIncome, Amount: usd(100), Date: today}
	if err := f.store.WithinTx(ctx, func(tx storage.Tx) error { return tx.InsertMovement(ctx, orphan) }); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	f.clock.Advance(1)
	rep, err := f.svc.ApplyPending(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Scanned != 6 || rep.Applied != 5 || rep.Failed != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := f.balance(t, acc.ID); got != 500 {
		t.Fatalf("balance=%d want 500", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 0)
	other := ledger.Account{ID: uuid.New(), OwnerID: uuid.New(), Name: "x", Type: "bank", Currency: "USD", InitialBalance: usd(0), CurrentBalance: usd(0), Active: true}
	f.store.SeedAccount(other)
	closed := f.account(t, 0)
	closed.Active = false
	f.store.SeedAccount(closed)
	eur, _ := money.NewAmountFromMinorUnits("EUR", 100)

	cases := []struct {
		name string
		in   Input
		want error
	}{
		{"negative amount", Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: usd(-1)}, errs.ErrInvalidAmount},
		{"bad kind", Input{OwnerID: f.owner, AccountID: acc.ID, Kind: "gift", Amount: usd(1)}, errs.ErrInvalidKind},
		{"unknown account", Input{OwnerID: f.owner, AccountID: uuid.New(), Kind: ledger.KindIncome, Amount: usd(1)}, errs.ErrInvalidAccount},
		{"foreign account", Input{OwnerID: f.owner, AccountID: other.ID, Kind: ledger.KindIncome, Amount: usd(1)}, errs.ErrForbidden},
		{"inactive account", Input{OwnerID: f.owner, AccountID: closed.ID, Kind: ledger.KindIncome, Amount: usd(1)}, errs.ErrInvalidAccount},
		{"currency mismatch", Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: eur}, errs.ErrCurrencyMismatch},
		{"more decimals than currency", Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: money.MustNewAmount("USD", 10555, 3)}, errs.ErrInvalidAmount},
		{"beyond int64 minor units", Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: money.MustParseAmount("USD", "99999999999999999.99")}, errs.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
	if got := f.balance(t, acc.ID); got != 0 {
		t.Fatalf("validation failure changed balance: %d", got)
	}
	list, _ := f.svc.List(ctx, f.owner, storage.MovementFilter{})
	if len(list) != 0 {
		t.Fatalf("validation failure left %d movements", len(list))
	}
}

func TestAmountPrecisionAndBalanceRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Trailing zeros beyond the currency scale are harmless.
	acc := f.account(t, 0)
	m, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: money.MustNewAmount("USD", 10550, 3)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.balance(t, acc.ID); got != 1055 {
		t.Fatalf("balance = %d, want 1055", got)
	}

	sub := money.MustNewAmount("USD", 10555, 3)
	if _, err := f.svc.Update(ctx, f.owner, m.ID, Patch{Amount: &sub}); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("update with sub-cent amount: got %v", err)
	}
	if got := f.balance(t, acc.ID); got != 1055 {
		t.Fatalf("rejected update changed balance: %d", got)
	}

	full := f.account(t, math.MaxInt64-5)
	_, err = f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: full.ID, Kind: ledger.KindIncome, Amount: usd(10)})
	if !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("overflowing balance: got %v want %v", err, errs.ErrInvalidAmount)
	}
	if errors.Is(err, errs.ErrCurrencyMismatch) {
		t.Fatalf("overflow reported as currency mismatch: %v", err)
	}
	if got := f.balance(t, full.ID); got != math.MaxInt64-5 {
		t.Fatalf("failed create changed balance: %d", got)
	}
	list, _ := f.svc.List(ctx, f.owner, storage.MovementFilter{AccountID: &full.ID})
	if len(list) != 0 {
		t.Fatalf("failed create left %d movements", len(list))
	}
}

func TestUpdateDelete_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 0)
	if _, err := f.svc.Update(ctx, f.owner, uuid.New(), Patch{}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := f.svc.Delete(ctx, f.owner, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
	m, _ := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: usd(10)})
	if err := f.svc.Delete(ctx, uuid.New(), m.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("delete by other owner: %v", err)
	}
}

// failingStore makes every balance adjustment fail after the row was written.
type failingStore struct{ *memory.Store }

type failingTx struct{ storage.Tx }

func (failingTx) AdjustBalance(context.Context, uuid.UUID, money.Amount) error {
	return errs.Persistence(errors.New("disk full"))
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx storage.Tx) error { return fn(failingTx{tx}) })
}

func TestCreate_RollsBackOnPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 100)
	svc := New(failingStore{f.store}, f.clock, nil)

	_, err := svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindExpense, Amount: usd(50)})
	if !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	list, _ := f.store.ListMovements(ctx, f.owner, storage.MovementFilter{})
	if len(list) != 0 {
		t.Fatalf("movement row survived the rollback")
	}
	if got := f.balance(t, acc.ID); got != 100 {
		t.Fatalf("balance=%d want 100", got)
	}
}

func TestAppliedInRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, 0)
	for _, d := range []date.Date{today.AddDays(-40), today.AddDays(-5), today, today.AddDays(5)} {
		if _, err := f.svc.Create(ctx, Input{OwnerID: f.owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: usd(1), Date: d}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := f.svc.AppliedInRange(ctx, f.owner, today.AddDays(-30), today.AddDays(30))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 applied movements, got %d", len(got))
	}
	if _, err := f.svc.AppliedInRange(ctx, f.owner, today, today.AddDays(-1)); !errors.Is(err, errs.ErrInvalidDate) {
		t.Fatalf("inverted range: %v", err)
	}
}
