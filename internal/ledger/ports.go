package ledger

import (
	"context"
	"time"

	"condoledger/internal/core"
)

// AccountRecord is the stored balance row for one account. Accounts are
// created implicitly on first mutation; repositories return a zero-balance
// record with the deployment's default fiscal start for unknown keys.
type AccountRecord struct {
	Key                  core.AccountKey
	Balance              core.Money
	FiscalYearStartMonth int
	UpdatedAt            time.Time
}

// Repository is the persistence collaborator. Implementations must make
// AppendEntry atomic per account (entry insert plus balance update commit or
// fail together) and return core.ErrDuplicateTransaction when the entry's
// transaction ref was already applied to that account.
type Repository interface {
	GetAccount(ctx context.Context, key core.AccountKey) (AccountRecord, error)
	FindEntryByRef(ctx context.Context, key core.AccountKey, ref string) (*core.Entry, error)
	AppendEntry(ctx context.Context, key core.AccountKey, e core.Entry) error
	// ListEntries returns up to limit entries, most recent first.
	ListEntries(ctx context.Context, key core.AccountKey, limit int) ([]core.Entry, error)
	// ListAllEntries returns the full history in append order, oldest first.
	ListAllEntries(ctx context.Context, key core.AccountKey) ([]core.Entry, error)
	ListAccounts(ctx context.Context) ([]AccountRecord, error)
}

// EventPublisher pushes entry-recorded events to interested consumers.
// Publishing is best effort: a failed publish never fails the mutation.
type EventPublisher interface {
	PublishEntryRecorded(ctx context.Context, key core.AccountKey, e core.Entry) error
}
