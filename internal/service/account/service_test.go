package account

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/storage"
	"github.com/tinoosan/cashflow/internal/storage/memory"
)

func newSvc(t *testing.T) (Service, *memory.Store, uuid.UUID) {
	t.Helper()
	st := memory.New()
	owner := uuid.New()
	st.SeedUser(ledger.User{ID: owner})
	return New(st, st, "usd"), st, owner
}

func minor(a money.Amount) int64 {
	m, _ := a.MinorUnits()
	return m
}

func TestCreate_ValidatesAndDefaults(t *testing.T) {
	svc, _, owner := newSvc(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, Input{OwnerID: owner, Name: " Daily ", Type: "Credit Card", Platform: "Visa", InitialMinor: -2500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acc.Type != "credit_card" || acc.Currency != "USD" || acc.Name != "Daily" || !acc.Active {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if minor(acc.CurrentBalance) != -2500 || minor(acc.InitialBalance) != -2500 {
		t.Fatalf("balances not seeded from initial: %+v", acc)
	}

	cases := []struct {
		name string
		in   Input
		want error
	}{
		{"missing owner", Input{Name: "x", Type: "bank"}, errs.ErrInvalid},
		{"missing name", Input{OwnerID: owner, Type: "bank"}, errs.ErrInvalid},
		{"unknown type", Input{OwnerID: owner, Name: "x", Type: "equity"}, errs.ErrInvalidAccountType},
		{"bad currency", Input{OwnerID: owner, Name: "x", Type: "bank", Currency: "ZZZ"}, errs.ErrInvalidCurrency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestUpdate_InitialBalanceShiftsCurrent(t *testing.T) {
	svc, st, owner := newSvc(t)
	ctx := context.Background()
	acc, err := svc.Create(ctx, Input{OwnerID: owner, Name: "Bank", Type: "bank", InitialMinor: 10000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Book an applied expense of 30.00 directly.
	err = st.WithinTx(ctx, func(tx storage.Tx) error {
		amt, _ := money.NewAmountFromMinorUnits("USD", 3000)
		return tx.AdjustBalance(ctx, acc.ID, ledger.Effect(ledger.KindExpense, amt))
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	initial := int64(15000)
	name := "Main bank"
	upd, err := svc.Update(ctx, owner, acc.ID, Patch{InitialMinor: &initial, Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if minor(upd.InitialBalance) != 15000 || minor(upd.CurrentBalance) != 12000 || upd.Name != name {
		t.Fatalf("unexpected update result: %+v", upd)
	}
	got, _ := svc.Get(ctx, owner, acc.ID)
	if minor(got.CurrentBalance) != 12000 {
		t.Fatalf("stored balance=%d", minor(got.CurrentBalance))
	}

	if _, err := svc.Update(ctx, uuid.New(), acc.ID, Patch{Name: &name}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("foreign update: %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	svc, _, owner := newSvc(t)
	ctx := context.Background()
	acc, _ := svc.Create(ctx, Input{OwnerID: owner, Name: "Wallet", Type: "wallet"})
	if err := svc.Deactivate(ctx, owner, acc.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.Deactivate(ctx, owner, acc.ID); err != nil {
		t.Fatalf("second deactivate should be a no-op: %v", err)
	}
	list, err := svc.List(ctx, owner)
	if err != nil || len(list) != 1 || list[0].Active {
		t.Fatalf("list after deactivate: %v %+v", err, list)
	}
}
