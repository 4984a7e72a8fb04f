package postgres

// Package postgres provides a pgx-backed storage implementation of storage.Store.
//
// Amounts are stored as minor units next to a currency code. Balance changes
// are relative updates (current = current + delta) executed inside the
// caller's transaction after the account rows are locked with FOR UPDATE.

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/errs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/storage"
)

//go:embed migrations/0001_init.sql
var initSQL string

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, initSQL)
	return errs.Persistence(err)
}

// SeedDev inserts a user and two accounts for quick local testing.
func (s *Store) SeedDev(ctx context.Context, currency string) (ledger.User, []ledger.Account, error) {
	user := ledger.User{ID: uuid.New()}
	zero, err := money.NewAmountFromMinorUnits(currency, 0)
	if err != nil {
		return ledger.User{}, nil, err
	}
	accs := []ledger.Account{
		{ID: uuid.New(), OwnerID: user.ID, Name: "Cash", Type: "cash", Platform: "Wallet", Currency: currency, InitialBalance: zero, CurrentBalance: zero, Active: true},
		{ID: uuid.New(), OwnerID: user.ID, Name: "Bank", Type: "bank", Platform: "Bank", Currency: currency, InitialBalance: zero, CurrentBalance: zero, Active: true},
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.User{}, nil, errs.Persistence(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `insert into users (id) values ($1)`, user.ID); err != nil {
		return ledger.User{}, nil, errs.Persistence(err)
	}
	for _, a := range accs {
		if err := insertAccount(ctx, tx, a); err != nil {
			return ledger.User{}, nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.User{}, nil, errs.Persistence(err)
	}
	return user, accs, nil
}

// WithinTx runs fn in a read-committed transaction. Row locks taken by the
// Tx serialize concurrent balance updates on the same account.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.Persistence(err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Persistence(err)
	}
	return nil
}

// --- Account reads/writes ---

const accountColumns = `id, owner_id, name, type, platform, currency, initial_balance_minor, current_balance_minor, active`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var initial, current int64
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Type, &a.Platform, &a.Currency, &initial, &current, &a.Active); err != nil {
		return ledger.Account{}, err
	}
	a.Currency = strings.TrimSpace(a.Currency)
	var err error
	if a.InitialBalance, err = money.NewAmountFromMinorUnits(a.Currency, initial); err != nil {
		return ledger.Account{}, err
	}
	if a.CurrentBalance, err = money.NewAmountFromMinorUnits(a.Currency, current); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) (map[uuid.UUID]ledger.Account, error) {
	defer rows.Close()
	out := make(map[uuid.UUID]ledger.Account)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Persistence(err)
		}
		out[a.ID] = a
	}
	return out, errs.Persistence(rows.Err())
}

// GetAccount fetches a single account by id for an owner.
func (s *Store) GetAccount(ctx context.Context, ownerID, accountID uuid.UUID) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1 and owner_id = $2`, accountID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, errs.Persistence(err)
	}
	return a, nil
}

// ListAccounts returns all accounts for an owner.
func (s *Store) ListAccounts(ctx context.Context, ownerID uuid.UUID) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `select `+accountColumns+` from accounts where owner_id = $1 order by name, id`, ownerID)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Persistence(err)
		}
		out = append(out, a)
	}
	return out, errs.Persistence(rows.Err())
}

// AccountsByIDs returns accounts for an owner filtered by IDs.
func (s *Store) AccountsByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountColumns+` from accounts where owner_id = $1 and id = any($2)`, ownerID, ids)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectAccounts(rows)
}

// CreateAccount inserts an account row.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if err := insertAccount(ctx, s.pool, a); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func insertAccount(ctx context.Context, q querier, a ledger.Account) error {
	initial, err := ledger.MinorUnits(a.InitialBalance)
	if err != nil {
		return err
	}
	current, err := ledger.MinorUnits(a.CurrentBalance)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
        insert into accounts (`+accountColumns+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, a.ID, a.OwnerID, a.Name, a.Type, a.Platform, strings.ToUpper(a.Currency), initial, current, a.Active)
	return mapWriteErr(err)
}

// --- Movement reads ---

const movementColumns = `id, owner_id, account_id, kind, amount_minor, currency, description, date, category_id, platform, applied, source_recurring_id, source_date`

func scanMovement(row pgx.Row) (ledger.Movement, error) {
	var m ledger.Movement
	var minor int64
	var curr string
	var day time.Time
	var srcID *uuid.UUID
	var srcDate *time.Time
	if err := row.Scan(&m.ID, &m.OwnerID, &m.AccountID, &m.Kind, &minor, &curr, &m.Description, &day, &m.CategoryID, &m.Platform, &m.Applied, &srcID, &srcDate); err != nil {
		return ledger.Movement{}, err
	}
	amt, err := money.NewAmountFromMinorUnits(strings.TrimSpace(curr), minor)
	if err != nil {
		return ledger.Movement{}, err
	}
	m.Amount = amt
	m.Date = date.Of(day)
	if srcID != nil && srcDate != nil {
		m.Source = &ledger.Source{RecurringID: *srcID, Date: date.Of(*srcDate)}
	}
	return m, nil
}

func collectMovements(rows pgx.Rows) ([]ledger.Movement, error) {
	defer rows.Close()
	out := make([]ledger.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, errs.Persistence(err)
		}
		out = append(out, m)
	}
	return out, errs.Persistence(rows.Err())
}

// GetMovement returns a movement by id for an owner.
func (s *Store) GetMovement(ctx context.Context, ownerID, id uuid.UUID) (ledger.Movement, error) {
	m, err := scanMovement(s.pool.QueryRow(ctx, `select `+movementColumns+` from movements where id = $1 and owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Movement{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Movement{}, errs.Persistence(err)
	}
	return m, nil
}

// ListMovements returns an owner's movements ordered by (date, id).
func (s *Store) ListMovements(ctx context.Context, ownerID uuid.UUID, f storage.MovementFilter) ([]ledger.Movement, error) {
	rows, err := s.pool.Query(ctx, `
        select `+movementColumns+`
        from movements
        where owner_id = $1
          and ($2::uuid is null or account_id = $2)
          and ($3::date is null or date >= $3)
          and ($4::date is null or date <= $4)
          and ($5::boolean is null or applied = $5)
        order by date asc, id asc
    `, ownerID, f.AccountID, nullDate(f.From), nullDate(f.To), f.Applied)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectMovements(rows)
}

// PendingMovements implements storage.MovementRepo.
func (s *Store) PendingMovements(ctx context.Context, asOf date.Date, after uuid.UUID, limit int) ([]ledger.Movement, error) {
	rows, err := s.pool.Query(ctx, `
        select `+movementColumns+`
        from movements
        where not applied and date <= $1 and id > $2
        order by id asc
        limit $3
    `, asOf.Time(), after, pageLimit(limit))
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectMovements(rows)
}

// --- Recurring definitions ---

const recurringColumns = `id, owner_id, account_id, kind, amount_minor, currency, description, category_id, frequency, start_date, end_date, open_ended`

func scanRecurring(row pgx.Row) (ledger.RecurringDefinition, error) {
	var d ledger.RecurringDefinition
	var minor int64
	var curr string
	var start time.Time
	var end *time.Time
	if err := row.Scan(&d.ID, &d.OwnerID, &d.AccountID, &d.Kind, &minor, &curr, &d.Description, &d.CategoryID, &d.Frequency, &start, &end, &d.OpenEnded); err != nil {
		return ledger.RecurringDefinition{}, err
	}
	amt, err := money.NewAmountFromMinorUnits(strings.TrimSpace(curr), minor)
	if err != nil {
		return ledger.RecurringDefinition{}, err
	}
	d.Amount = amt
	d.StartDate = date.Of(start)
	if end != nil {
		d.EndDate = date.Of(*end)
	}
	return d, nil
}

func collectRecurring(rows pgx.Rows) ([]ledger.RecurringDefinition, error) {
	defer rows.Close()
	out := make([]ledger.RecurringDefinition, 0)
	for rows.Next() {
		d, err := scanRecurring(rows)
		if err != nil {
			return nil, errs.Persistence(err)
		}
		out = append(out, d)
	}
	return out, errs.Persistence(rows.Err())
}

func (s *Store) GetRecurring(ctx context.Context, ownerID, id uuid.UUID) (ledger.RecurringDefinition, error) {
	d, err := scanRecurring(s.pool.QueryRow(ctx, `select `+recurringColumns+` from recurring_definitions where id = $1 and owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.RecurringDefinition{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.RecurringDefinition{}, errs.Persistence(err)
	}
	return d, nil
}

func (s *Store) ListRecurring(ctx context.Context, ownerID uuid.UUID) ([]ledger.RecurringDefinition, error) {
	rows, err := s.pool.Query(ctx, `select `+recurringColumns+` from recurring_definitions where owner_id = $1 order by start_date, id`, ownerID)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectRecurring(rows)
}

func (s *Store) ScanRecurring(ctx context.Context, after uuid.UUID, limit int) ([]ledger.RecurringDefinition, error) {
	rows, err := s.pool.Query(ctx, `select `+recurringColumns+` from recurring_definitions where id > $1 order by id limit $2`, after, pageLimit(limit))
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectRecurring(rows)
}

func (s *Store) CreateRecurring(ctx context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error) {
	minor, err := ledger.MinorUnits(d.Amount)
	if err != nil {
		return ledger.RecurringDefinition{}, err
	}
	_, err = s.pool.Exec(ctx, `
        insert into recurring_definitions (`+recurringColumns+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    `, d.ID, d.OwnerID, d.AccountID, d.Kind, minor, d.Amount.Curr().Code(), d.Description, d.CategoryID, d.Frequency, d.StartDate.Time(), nullDate(d.EndDate), d.OpenEnded)
	if err != nil {
		return ledger.RecurringDefinition{}, mapWriteErr(err)
	}
	return d, nil
}

func (s *Store) UpdateRecurring(ctx context.Context, d ledger.RecurringDefinition) (ledger.RecurringDefinition, error) {
	minor, err := ledger.MinorUnits(d.Amount)
	if err != nil {
		return ledger.RecurringDefinition{}, err
	}
	ct, err := s.pool.Exec(ctx, `
        update recurring_definitions
        set account_id=$1, kind=$2, amount_minor=$3, currency=$4, description=$5, category_id=$6,
            frequency=$7, start_date=$8, end_date=$9, open_ended=$10
        where id=$11 and owner_id=$12
    `, d.AccountID, d.Kind, minor, d.Amount.Curr().Code(), d.Description, d.CategoryID, d.Frequency, d.StartDate.Time(), nullDate(d.EndDate), d.OpenEnded, d.ID, d.OwnerID)
	if err != nil {
		return ledger.RecurringDefinition{}, mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ledger.RecurringDefinition{}, errs.ErrNotFound
	}
	return d, nil
}

// DeleteRecurring removes the definition; exceptions cascade, movements stay.
func (s *Store) DeleteRecurring(ctx context.Context, ownerID, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from recurring_definitions where id = $1 and owner_id = $2`, id, ownerID)
	if err != nil {
		return errs.Persistence(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Exceptions ---

const exceptionColumns = `id, recurring_id, owner_id, original_date, action, new_date`

func scanException(row pgx.Row) (ledger.RecurringException, error) {
	var e ledger.RecurringException
	var original time.Time
	var newDate *time.Time
	if err := row.Scan(&e.ID, &e.RecurringID, &e.OwnerID, &original, &e.Action, &newDate); err != nil {
		return ledger.RecurringException{}, err
	}
	e.OriginalDate = date.Of(original)
	if newDate != nil {
		e.NewDate = date.Of(*newDate)
	}
	return e, nil
}

func (s *Store) ListExceptions(ctx context.Context, recurringID uuid.UUID) ([]ledger.RecurringException, error) {
	rows, err := s.pool.Query(ctx, `select `+exceptionColumns+` from recurring_exceptions where recurring_id = $1 order by original_date`, recurringID)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	defer rows.Close()
	out := make([]ledger.RecurringException, 0)
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, errs.Persistence(err)
		}
		out = append(out, e)
	}
	return out, errs.Persistence(rows.Err())
}

func (s *Store) ExceptionOn(ctx context.Context, recurringID uuid.UUID, original date.Date) (ledger.RecurringException, bool, error) {
	e, err := scanException(s.pool.QueryRow(ctx, `select `+exceptionColumns+` from recurring_exceptions where recurring_id = $1 and original_date = $2`, recurringID, original.Time()))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.RecurringException{}, false, nil
	}
	if err != nil {
		return ledger.RecurringException{}, false, errs.Persistence(err)
	}
	return e, true, nil
}

func (s *Store) RescheduledTo(ctx context.Context, recurringID uuid.UUID, day date.Date) (bool, error) {
	var found bool
	err := s.pool.QueryRow(ctx, `
        select exists (
            select 1 from recurring_exceptions
            where recurring_id = $1 and action = 'postpone' and new_date = $2
        )
    `, recurringID, day.Time()).Scan(&found)
	return found, errs.Persistence(err)
}

func (s *Store) DeleteException(ctx context.Context, recurringID, exceptionID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from recurring_exceptions where id = $1 and recurring_id = $2`, exceptionID, recurringID)
	if err != nil {
		return errs.Persistence(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Transactions ---

// Tx wraps a pgx.Tx and implements storage.Tx.
type Tx struct{ tx pgx.Tx }

// LockAccounts takes row locks in id order so concurrent multi-account updates cannot deadlock.
func (t *Tx) LockAccounts(ctx context.Context, ownerID uuid.UUID, ids ...uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Account{}, nil
	}
	rows, err := t.tx.Query(ctx, `
        select `+accountColumns+`
        from accounts
        where owner_id = $1 and id = any($2)
        order by id
        for update
    `, ownerID, ids)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return collectAccounts(rows)
}

func (t *Tx) AdjustBalance(ctx context.Context, accountID uuid.UUID, delta money.Amount) error {
	minor, err := ledger.MinorUnits(delta)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
        update accounts
        set current_balance_minor = current_balance_minor + $1
        where id = $2 and currency = $3
    `, minor, accountID, delta.Curr().Code())
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `select exists (select 1 from accounts where id = $1)`, accountID).Scan(&exists); err != nil {
		return errs.Persistence(err)
	}
	if exists {
		return errs.Invalid(errs.ErrCurrencyMismatch, "account currency differs from amount currency")
	}
	return errs.ErrNotFound
}

func (t *Tx) UpdateAccount(ctx context.Context, a ledger.Account) error {
	initial, err := ledger.MinorUnits(a.InitialBalance)
	if err != nil {
		return err
	}
	current, err := ledger.MinorUnits(a.CurrentBalance)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
        update accounts
        set name=$1, type=$2, platform=$3, initial_balance_minor=$4, current_balance_minor=$5, active=$6
        where id=$7 and owner_id=$8
    `, a.Name, a.Type, a.Platform, initial, current, a.Active, a.ID, a.OwnerID)
	if err != nil {
		return errs.Persistence(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) LockMovement(ctx context.Context, id uuid.UUID) (ledger.Movement, error) {
	m, err := scanMovement(t.tx.QueryRow(ctx, `select `+movementColumns+` from movements where id = $1 for update`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Movement{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Movement{}, errs.Persistence(err)
	}
	return m, nil
}

func (t *Tx) InsertMovement(ctx context.Context, m ledger.Movement) error {
	minor, err := ledger.MinorUnits(m.Amount)
	if err != nil {
		return err
	}
	var srcID *uuid.UUID
	var srcDate any
	if m.Source != nil {
		id := m.Source.RecurringID
		srcID = &id
		srcDate = m.Source.Date.Time()
	}
	_, err = t.tx.Exec(ctx, `
        insert into movements (`+movementColumns+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `, m.ID, m.OwnerID, m.AccountID, m.Kind, minor, m.Amount.Curr().Code(), m.Description, m.Date.Time(), m.CategoryID, m.Platform, m.Applied, srcID, srcDate)
	return mapWriteErr(err)
}

// UpdateMovement rewrites the mutable columns; provenance is never changed.
func (t *Tx) UpdateMovement(ctx context.Context, m ledger.Movement) error {
	minor, err := ledger.MinorUnits(m.Amount)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
        update movements
        set account_id=$1, kind=$2, amount_minor=$3, currency=$4, description=$5, date=$6,
            category_id=$7, platform=$8, applied=$9
        where id=$10
    `, m.AccountID, m.Kind, minor, m.Amount.Curr().Code(), m.Description, m.Date.Time(), m.CategoryID, m.Platform, m.Applied, m.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteMovement(ctx context.Context, id uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from movements where id = $1`, id)
	if err != nil {
		return errs.Persistence(err)
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) MovementBySource(ctx context.Context, recurringID uuid.UUID, on date.Date) (ledger.Movement, bool, error) {
	m, err := scanMovement(t.tx.QueryRow(ctx, `
        select `+movementColumns+`
        from movements
        where source_recurring_id = $1 and source_date = $2
    `, recurringID, on.Time()))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Movement{}, false, nil
	}
	if err != nil {
		return ledger.Movement{}, false, errs.Persistence(err)
	}
	return m, true, nil
}

func (t *Tx) UpsertException(ctx context.Context, e ledger.RecurringException) (ledger.RecurringException, error) {
	out, err := scanException(t.tx.QueryRow(ctx, `
        insert into recurring_exceptions (`+exceptionColumns+`)
        values ($1,$2,$3,$4,$5,$6)
        on conflict (recurring_id, original_date)
        do update set action = excluded.action, new_date = excluded.new_date
        returning `+exceptionColumns+`
    `, e.ID, e.RecurringID, e.OwnerID, e.OriginalDate.Time(), e.Action, nullDate(e.NewDate)))
	if err != nil {
		return ledger.RecurringException{}, mapWriteErr(err)
	}
	return out, nil
}

// --- helpers ---

func nullDate(d date.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}

// mapWriteErr turns unique violations into errs.ErrConflict, bigint overflow
// into errs.ErrInvalidAmount and wraps the rest.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errs.ErrConflict
		case "23503":
			return errs.ErrInvalidAccount
		case "22003":
			return errs.Invalid(errs.ErrInvalidAmount, "amount out of range")
		}
	}
	return errs.Persistence(err)
}
