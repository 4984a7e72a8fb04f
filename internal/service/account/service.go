// Package account implements the account store rules: catalogue-checked types,
// a fixed currency, soft-deletes, and initial balance edits that keep
// current_balance = initial_balance + applied effects.
package account

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/cashflow/internal/dictionary"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/slug"
	"github.com/tinoosan/cashflow/internal/storage"
)

type Repo interface {
	ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]ledger.Account, error)
	GetAccount(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error)
}

type Writer interface {
	storage.Transactor
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// Input describes a new account. InitialMinor is in minor units of Currency.
type Input struct {
	OwnerID      uuid.UUID
	Name         string
	Type         string
	Platform     string
	Currency     string
	InitialMinor int64
}

// Patch lists editable fields; nil keeps the current value. Currency is immutable.
type Patch struct {
	Name         *string
	Type         *string
	Platform     *string
	InitialMinor *int64
}

type Service interface {
	Create(ctx context.Context, in Input) (ledger.Account, error)
	Get(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]ledger.Account, error)
	Update(ctx context.Context, ownerID, accountID uuid.UUID, p Patch) (ledger.Account, error)
	Deactivate(ctx context.Context, ownerID, accountID uuid.UUID) error
}

type service struct {
	repo            Repo
	writer          Writer
	defaultCurrency string
}

// New builds the service. defaultCurrency is used when Input.Currency is empty.
func New(repo Repo, writer Writer, defaultCurrency string) Service {
	return &service{repo: repo, writer: writer, defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// normalizeType maps free text such as "Credit Card" onto a catalogue code.
func normalizeType(t string) (string, error) {
	code := slug.Slugify(t)
	if !slug.IsSlug(code) {
		return "", errs.Invalid(errs.ErrInvalidAccountType, "type is required")
	}
	if _, ok := dictionary.Lookup(code); !ok {
		return "", errs.Invalid(errs.ErrInvalidAccountType, "unknown account type "+code)
	}
	return code, nil
}

func (s *service) Create(ctx context.Context, in Input) (ledger.Account, error) {
	if in.OwnerID == uuid.Nil {
		return ledger.Account{}, errs.Invalid(errs.ErrInvalid, "owner is required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Account{}, errs.Invalid(errs.ErrInvalid, "name is required")
	}
	typ, err := normalizeType(in.Type)
	if err != nil {
		return ledger.Account{}, err
	}
	curr := strings.ToUpper(strings.TrimSpace(in.Currency))
	if curr == "" {
		curr = s.defaultCurrency
	}
	initial, err := money.NewAmountFromMinorUnits(curr, in.InitialMinor)
	if err != nil {
		return ledger.Account{}, errs.Invalid(errs.ErrInvalidCurrency, err.Error())
	}
	a := ledger.Account{
		ID:             uuid.New(),
		OwnerID:        in.OwnerID,
		Name:           name,
		Type:           typ,
		Platform:       strings.TrimSpace(in.Platform),
		Currency:       initial.Curr().Code(),
		InitialBalance: initial,
		CurrentBalance: initial,
		Active:         true,
	}
	return s.writer.CreateAccount(ctx, a)
}

func (s *service) Get(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error) {
	if ownerID == uuid.Nil || accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, ownerID, accountID)
}

func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]ledger.Account, error) {
	if ownerID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListAccounts(ctx, ownerID)
}

// Update edits descriptive fields. A new initial balance shifts the current
// balance by the same delta under the account lock.
func (s *service) Update(ctx context.Context, ownerID, accountID uuid.UUID, p Patch) (ledger.Account, error) {
	if ownerID == uuid.Nil || accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	var typ string
	if p.Type != nil {
		var err error
		if typ, err = normalizeType(*p.Type); err != nil {
			return ledger.Account{}, err
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ledger.Account{}, errs.Invalid(errs.ErrInvalid, "name must not be empty")
	}
	var out ledger.Account
	err := s.writer.WithinTx(ctx, func(tx storage.Tx) error {
		accs, err := tx.LockAccounts(ctx, ownerID, accountID)
		if err != nil {
			return err
		}
		a, ok := accs[accountID]
		if !ok {
			return errs.ErrNotFound
		}
		if p.Name != nil {
			a.Name = strings.TrimSpace(*p.Name)
		}
		if p.Type != nil {
			a.Type = typ
		}
		if p.Platform != nil {
			a.Platform = strings.TrimSpace(*p.Platform)
		}
		if p.InitialMinor != nil {
			next, err := money.NewAmountFromMinorUnits(a.Currency, *p.InitialMinor)
			if err != nil {
				return errs.Invalid(errs.ErrInvalidAmount, err.Error())
			}
			delta, err := next.Sub(a.InitialBalance)
			if err != nil {
				return errs.Invalid(errs.ErrInvalidAmount, err.Error())
			}
			if a.CurrentBalance, err = a.CurrentBalance.Add(delta); err != nil {
				return errs.Invalid(errs.ErrInvalidAmount, err.Error())
			}
			if _, err := ledger.MinorUnits(a.CurrentBalance); err != nil {
				return err
			}
			a.InitialBalance = next
		}
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return out, nil
}

// Deactivate sets Active=false (soft delete). Existing movements stay and can still be reversed.
func (s *service) Deactivate(ctx context.Context, ownerID, accountID uuid.UUID) error {
	if ownerID == uuid.Nil || accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.WithinTx(ctx, func(tx storage.Tx) error {
		accs, err := tx.LockAccounts(ctx, ownerID, accountID)
		if err != nil {
			return err
		}
		a, ok := accs[accountID]
		if !ok {
			return errs.ErrNotFound
		}
		if !a.Active {
			return nil
		}
		a.Active = false
		return tx.UpdateAccount(ctx, a)
	})
}
