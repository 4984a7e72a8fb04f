package ledger

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
)

// Kind classifies the effect of a movement on its account.
type Kind string

const (
	// KindIncome increases the account balance.
	KindIncome Kind = "income"
	// KindExpense decreases the account balance.
	KindExpense Kind = "expense"
	// KindSaving increases the account balance, like income.
	KindSaving Kind = "saving"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindSaving:
		return true
	}
	return false
}

// Frequency is the cadence of a recurring definition.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ExceptionAction tells what happens to one occurrence of a recurring definition.
type ExceptionAction string

const (
	// ActionSkip suppresses the occurrence.
	ActionSkip ExceptionAction = "skip"
	// ActionPostpone suppresses the occurrence and reschedules it to NewDate.
	ActionPostpone ExceptionAction = "postpone"
)

func (a ExceptionAction) Valid() bool { return a == ActionSkip || a == ActionPostpone }

// User captures the owner of ledger data.
type User struct {
	ID uuid.UUID
}

// Account holds a running balance owned by a user.
// CurrentBalance = InitialBalance + applied income/saving - applied expenses.
type Account struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string
	// Type is a catalogue code such as bank, cash or credit_card.
	Type string
	// Platform names the institution or app holding the money (e.g., Nequi, Monzo).
	Platform       string
	Currency       string
	InitialBalance money.Amount
	CurrentBalance money.Amount
	// Active is false once the account is soft-deleted.
	Active bool
}

// Movement is one income, expense or saving recorded against an account.
type Movement struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	AccountID   uuid.UUID
	Kind        Kind
	Amount      money.Amount
	Description string
	Date        date.Date
	CategoryID  *uuid.UUID
	Platform    string
	// Applied is true once the effect is reflected in the account balance.
	Applied bool
	// Source links a materialized movement to the recurring occurrence it came from.
	Source *Source
}

// Source identifies the recurring occurrence that produced a movement.
type Source struct {
	RecurringID uuid.UUID
	Date        date.Date
}

// Effect returns the signed balance change of the movement: positive for
// income and saving, negative for expenses.
func (m Movement) Effect() money.Amount {
	return Effect(m.Kind, m.Amount)
}

// Effect returns amount signed according to kind.
func Effect(k Kind, amount money.Amount) money.Amount {
	if k == KindExpense {
		return amount.Neg()
	}
	return amount
}

// MinorUnits returns amount in whole minor units of its currency. Amounts with
// more decimals than the currency allows, or too large for an int64, fail with
// errs.ErrInvalidAmount.
func MinorUnits(amount money.Amount) (int64, error) {
	if scale := amount.Curr().Scale(); amount.MinScale() > scale {
		return 0, errs.Invalid(errs.ErrInvalidAmount, amount.Curr().Code()+" allows at most "+strconv.Itoa(scale)+" decimals")
	}
	minor, ok := amount.MinorUnits()
	if !ok {
		return 0, errs.Invalid(errs.ErrInvalidAmount, "amount out of range")
	}
	return minor, nil
}

// RecurringDefinition describes a movement that repeats on a schedule.
type RecurringDefinition struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	AccountID   uuid.UUID
	Kind        Kind
	Amount      money.Amount
	Description string
	CategoryID  *uuid.UUID
	Frequency   Frequency
	StartDate   date.Date
	// EndDate is the last day an occurrence may fall on; zero when open ended.
	EndDate   date.Date
	OpenEnded bool
}

// ActiveOn reports whether the definition may still produce occurrences on or after day.
func (d RecurringDefinition) ActiveOn(day date.Date) bool {
	return d.OpenEnded || d.EndDate.IsZero() || !d.EndDate.Before(day)
}

// RecurringException overrides a single occurrence of a definition.
// At most one exception exists per (RecurringID, OriginalDate).
type RecurringException struct {
	ID           uuid.UUID
	RecurringID  uuid.UUID
	OwnerID      uuid.UUID
	OriginalDate date.Date
	Action       ExceptionAction
	// NewDate is set only for postpone.
	NewDate date.Date
}
