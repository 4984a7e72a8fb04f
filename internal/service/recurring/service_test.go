package recurring

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/schedule"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/storage/memory"
)

var today = date.New(2024, 1, 31)

func usd(minor int64) money.Amount {
	a, _ := money.NewAmountFromMinorUnits("USD", minor)
	return a
}

func setup(t *testing.T) (Service, *memory.Store, *date.ManualClock, uuid.UUID, ledger.Account) {
	t.Helper()
	st := memory.New()
	clock := date.NewManualClock(today)
	owner := uuid.New()
	acc := ledger.Account{ID: uuid.New(), OwnerID: owner, Name: "Nequi", Type: "wallet", Currency: "USD", InitialBalance: usd(0), CurrentBalance: usd(0), Active: true}
	st.SeedAccount(acc)
	moves := movement.New(st, clock, nil)
	return New(st, moves, schedule.NewCalculator(0), clock), st, clock, owner, acc
}

func validInput(owner uuid.UUID, acc ledger.Account) Input {
	return Input{
		OwnerID: owner, AccountID: acc.ID, Kind: ledger.KindIncome, Amount: usd(250000),
		Description: " salary ", Frequency: ledger.FrequencyMonthly, StartDate: today, OpenEnded: true,
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, owner, acc := setup(t)
	ctx := context.Background()

	def, err := svc.Create(ctx, validInput(owner, acc))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if def.Description != "salary" || !def.EndDate.IsZero() {
		t.Fatalf("unexpected definition: %+v", def)
	}

	mutate := func(f func(*Input)) Input {
		in := validInput(owner, acc)
		f(&in)
		return in
	}
	eur, _ := money.NewAmountFromMinorUnits("EUR", 1)
	cases := []struct {
		name string
		in   Input
		want error
	}{
		{"bad kind", mutate(func(in *Input) { in.Kind = "bonus" }), errs.ErrInvalidKind},
		{"bad frequency", mutate(func(in *Input) { in.Frequency = "yearly" }), errs.ErrInvalidFrequency},
		{"negative amount", mutate(func(in *Input) { in.Amount = usd(-5) }), errs.ErrInvalidAmount},
		{"missing start", mutate(func(in *Input) { in.StartDate = date.Date{} }), errs.ErrInvalidDate},
		{"bounded without end", mutate(func(in *Input) { in.OpenEnded = false }), errs.ErrInvalidDate},
		{"end before start", mutate(func(in *Input) { in.OpenEnded = false; in.EndDate = today.AddDays(-1) }), errs.ErrInvalidDate},
		{"foreign account", mutate(func(in *Input) { in.OwnerID = uuid.New() }), errs.ErrInvalidAccount},
		{"currency mismatch", mutate(func(in *Input) { in.Amount = eur }), errs.ErrCurrencyMismatch},
		{"more decimals than currency", mutate(func(in *Input) { in.Amount = money.MustNewAmount("USD", 10555, 3) }), errs.ErrInvalidAmount},
		{"beyond int64 minor units", mutate(func(in *Input) { in.Amount = money.MustParseAmount("USD", "99999999999999999.99") }), errs.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestListActive(t *testing.T) {
	svc, _, _, owner, acc := setup(t)
	ctx := context.Background()
	open := validInput(owner, acc)
	ended := validInput(owner, acc)
	ended.OpenEnded = false
	ended.StartDate = today.AddDays(-60)
	ended.EndDate = today.AddDays(-1)
	endsToday := ended
	endsToday.EndDate = today
	for _, in := range []Input{open, ended, endsToday} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	active, err := svc.ListActive(ctx, owner)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active definitions, got %d", len(active))
	}
}

func TestExceptions_UpsertAndDelete(t *testing.T) {
	svc, _, _, owner, acc := setup(t)
	ctx := context.Background()
	def, _ := svc.Create(ctx, validInput(owner, acc))

	first, err := svc.SkipToday(ctx, owner, def.ID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	second, err := svc.Postpone(ctx, owner, def.ID, today.AddDays(2))
	if err != nil {
		t.Fatalf("postpone: %v", err)
	}
	if second.ID != first.ID || second.Action != ledger.ActionPostpone || second.NewDate != today.AddDays(2) {
		t.Fatalf("postpone should replace today's skip: first=%+v second=%+v", first, second)
	}
	list, _ := svc.ListExceptions(ctx, owner, def.ID)
	if len(list) != 1 {
		t.Fatalf("expected one exception per date, got %d", len(list))
	}

	if _, err := svc.Postpone(ctx, owner, def.ID, today); !errors.Is(err, errs.ErrInvalidDate) {
		t.Fatalf("postpone to today: %v", err)
	}
	if _, err := svc.AddException(ctx, owner, def.ID, ExceptionInput{OriginalDate: today.AddDays(29), Action: ledger.ActionPostpone}); !errors.Is(err, errs.ErrInvalidDate) {
		t.Fatalf("postpone without new_date: %v", err)
	}
	if _, err := svc.ListExceptions(ctx, uuid.New(), def.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign owner listing: %v", err)
	}

	if err := svc.DeleteException(ctx, owner, def.ID, second.ID); err != nil {
		t.Fatalf("delete exception: %v", err)
	}
	if err := svc.DeleteException(ctx, owner, def.ID, second.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCalendar_StatusesAndClamping(t *testing.T) {
	svc, _, _, owner, acc := setup(t)
	ctx := context.Background()
	def, _ := svc.Create(ctx, validInput(owner, acc)) // monthly on the 31st, starting 2024-01-31

	// Skip Feb 29 (leap year clamp), postpone Mar 31 to Apr 2.
	if _, err := svc.AddException(ctx, owner, def.ID, ExceptionInput{OriginalDate: date.New(2024, 2, 29), Action: ledger.ActionSkip}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if _, err := svc.AddException(ctx, owner, def.ID, ExceptionInput{OriginalDate: date.New(2024, 3, 31), Action: ledger.ActionPostpone, NewDate: date.New(2024, 4, 2)}); err != nil {
		t.Fatalf("postpone: %v", err)
	}

	got, err := svc.Calendar(ctx, owner, date.New(2024, 1, 1), date.New(2024, 4, 30))
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	want := []struct {
		day    date.Date
		status Status
	}{
		{date.New(2024, 1, 31), StatusScheduled},
		{date.New(2024, 2, 29), StatusSkipped},
		{date.New(2024, 3, 31), StatusPostponed},
		{date.New(2024, 4, 2), StatusRescheduled},
		{date.New(2024, 4, 30), StatusScheduled},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Date != w.day || got[i].Status != w.status {
			t.Fatalf("occurrence %d = %s/%s, want %s/%s", i, got[i].Date, got[i].Status, w.day, w.status)
		}
		if got[i].AccountName != "Nequi" {
			t.Fatalf("account name not attached: %+v", got[i])
		}
	}
	if got[3].OriginalDate != date.New(2024, 3, 31) {
		t.Fatalf("rescheduled entry must carry its original date: %+v", got[3])
	}

	if _, err := svc.Calendar(ctx, owner, date.New(2024, 5, 1), date.New(2024, 4, 1)); !errors.Is(err, errs.ErrInvalidDate) {
		t.Fatalf("inverted window: %v", err)
	}
	if _, err := svc.Calendar(ctx, owner, date.New(2024, 1, 1), date.New(2026, 1, 1)); !errors.Is(err, errs.ErrInvalidDate) {
		t.Fatalf("oversized window: %v", err)
	}
}

func TestDelete_KeepsMaterializedMovements(t *testing.T) {
	svc, st, _, owner, acc := setup(t)
	ctx := context.Background()
	def, _ := svc.Create(ctx, validInput(owner, acc))
	m, err := svc.ApplyNow(ctx, owner, def.ID)
	if err != nil {
		t.Fatalf("apply now: %v", err)
	}
	if err := svc.Delete(ctx, owner, def.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetMovement(ctx, owner, m.ID); err != nil {
		t.Fatalf("movement removed with its definition: %v", err)
	}
	if _, err := svc.Get(ctx, owner, def.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("definition still readable: %v", err)
	}
}
