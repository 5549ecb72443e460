// Package storage persists ledger accounts and entries in SQLite.
//
// The append path runs as one SQL transaction: entry insert plus balance
// upsert commit or fail together, so a reader never observes a balance that
// disagrees with its history. The unique index on (client, unit,
// transaction_ref) backs the idempotency contract even under races the
// service-level lock does not cover, e.g. two processes sharing one file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"condoledger/internal/core"
	"condoledger/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db                 *sql.DB
	defaultFiscalStart int
}

func NewSQLiteRepository(dbPath string, defaultFiscalStartMonth int) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:                 db,
		defaultFiscalStart: defaultFiscalStartMonth,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, key core.AccountKey) (ledger.AccountRecord, error) {
	const query = `SELECT balance_cents, fiscal_year_start_month, updated_at
		FROM accounts WHERE client_id = ? AND unit_id = ?`

	var (
		balance   int64
		fiscal    int
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, query, key.ClientID, key.UnitID).Scan(&balance, &fiscal, &updatedAt)
	if err == sql.ErrNoRows {
		// Accounts exist implicitly: an unknown key is a zero-balance
		// account, not an error.
		return ledger.AccountRecord{
			Key:                  key,
			FiscalYearStartMonth: r.defaultFiscalStart,
		}, nil
	}
	if err != nil {
		return ledger.AccountRecord{}, storageErr("query account", err)
	}

	ts, err := parseStoredTime(updatedAt)
	if err != nil {
		return ledger.AccountRecord{}, fmt.Errorf("account %s: %w", key, err)
	}
	return ledger.AccountRecord{
		Key:                  key,
		Balance:              core.Money{Cents: balance},
		FiscalYearStartMonth: fiscal,
		UpdatedAt:            ts,
	}, nil
}

func (r *SQLiteRepository) FindEntryByRef(ctx context.Context, key core.AccountKey, ref string) (*core.Entry, error) {
	const query = `SELECT id, occurred_at, amount_cents, resulting_balance_cents, transaction_ref, note, source
		FROM ledger_entries
		WHERE client_id = ? AND unit_id = ? AND transaction_ref = ?`

	row := r.db.QueryRowContext(ctx, query, key.ClientID, key.UnitID, ref)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("query entry by ref", err)
	}
	return entry, nil
}

func (r *SQLiteRepository) AppendEntry(ctx context.Context, key core.AccountKey, e core.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin append", err)
	}
	defer tx.Rollback()

	const insertEntry = `INSERT INTO ledger_entries
		(id, client_id, unit_id, occurred_at, amount_cents, resulting_balance_cents, transaction_ref, note, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, insertEntry,
		e.ID, key.ClientID, key.UnitID,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
		e.Amount.Cents, e.ResultingBalance.Cents,
		e.TransactionRef, e.Note, string(e.Source), now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateTransaction
		}
		return storageErr("insert entry", err)
	}

	const upsertAccount = `INSERT INTO accounts (client_id, unit_id, balance_cents, fiscal_year_start_month, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_id, unit_id)
		DO UPDATE SET balance_cents = excluded.balance_cents, updated_at = excluded.updated_at`

	_, err = tx.ExecContext(ctx, upsertAccount,
		key.ClientID, key.UnitID, e.ResultingBalance.Cents, r.defaultFiscalStart, now)
	if err != nil {
		return storageErr("upsert account balance", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit append", err)
	}
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, key core.AccountKey, limit int) ([]core.Entry, error) {
	const query = `SELECT id, occurred_at, amount_cents, resulting_balance_cents, transaction_ref, note, source
		FROM ledger_entries
		WHERE client_id = ? AND unit_id = ?
		ORDER BY seq DESC
		LIMIT ?`

	return r.queryEntries(ctx, query, key.ClientID, key.UnitID, limit)
}

func (r *SQLiteRepository) ListAllEntries(ctx context.Context, key core.AccountKey) ([]core.Entry, error) {
	const query = `SELECT id, occurred_at, amount_cents, resulting_balance_cents, transaction_ref, note, source
		FROM ledger_entries
		WHERE client_id = ? AND unit_id = ?
		ORDER BY seq ASC`

	return r.queryEntries(ctx, query, key.ClientID, key.UnitID)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]ledger.AccountRecord, error) {
	const query = `SELECT client_id, unit_id, balance_cents, fiscal_year_start_month, updated_at
		FROM accounts
		ORDER BY client_id, unit_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("query accounts", err)
	}
	defer rows.Close()

	var out []ledger.AccountRecord
	for rows.Next() {
		var (
			rec       ledger.AccountRecord
			updatedAt string
		)
		if err := rows.Scan(&rec.Key.ClientID, &rec.Key.UnitID, &rec.Balance.Cents, &rec.FiscalYearStartMonth, &updatedAt); err != nil {
			return nil, storageErr("scan account", err)
		}
		ts, err := parseStoredTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", rec.Key, err)
		}
		rec.UpdatedAt = ts
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate accounts", err)
	}
	return out, nil
}

// SetFiscalStart overrides one account's fiscal-year start month, creating
// the account row if it does not exist yet.
func (r *SQLiteRepository) SetFiscalStart(ctx context.Context, key core.AccountKey, startMonth int) error {
	const query = `INSERT INTO accounts (client_id, unit_id, balance_cents, fiscal_year_start_month, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (client_id, unit_id)
		DO UPDATE SET fiscal_year_start_month = excluded.fiscal_year_start_month`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, query, key.ClientID, key.UnitID, startMonth, now); err != nil {
		return storageErr("set fiscal start", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*core.Entry, error) {
	var (
		e          core.Entry
		occurredAt string
		source     string
	)
	err := row.Scan(&e.ID, &occurredAt, &e.Amount.Cents, &e.ResultingBalance.Cents, &e.TransactionRef, &e.Note, &source)
	if err != nil {
		return nil, err
	}
	ts, err := parseStoredTime(occurredAt)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.OccurredAt = ts
	e.Source = core.EntrySource(source)
	return &e, nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query entries", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate entries", err)
	}
	return out, nil
}

// parseStoredTime rejects unparseable instants instead of defaulting them:
// a silently zeroed timestamp would corrupt every fiscal period derived
// from it.
func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored instant %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storageErr classifies driver failures as transient so callers know a
// retry with the same transaction ref is safe.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorageUnavailable, err)
}

var _ ledger.Repository = (*SQLiteRepository)(nil)
