// Package ledger owns per-account balances and their append-only history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"condoledger/internal/core"
	"condoledger/internal/ident"
	"condoledger/internal/metrics"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// Service serializes mutations per account and keeps the invariant that a
// balance always equals the sum of its history.
type Service struct {
	repo    Repository
	ids     *ident.Formatter
	pub     EventPublisher     // optional
	metrics *metrics.Collector // optional

	muMap map[core.AccountKey]*sync.Mutex
	mapMu sync.Mutex // protects muMap itself
}

// BalanceResult is the answer to a balance query.
type BalanceResult struct {
	Balance core.Money
	AsOf    time.Time
}

// DeltaResult reports one applied (or replayed) mutation.
type DeltaResult struct {
	Previous core.Money
	New      core.Money
	Entry    core.Entry
	// Replayed is true when the transaction ref had already been applied
	// and the original result was returned instead of a second entry.
	Replayed bool
}

func NewService(repo Repository, ids *ident.Formatter, pub EventPublisher, collector *metrics.Collector) *Service {
	return &Service{
		repo:    repo,
		ids:     ids,
		pub:     pub,
		metrics: collector,
		muMap:   make(map[core.AccountKey]*sync.Mutex),
	}
}

// accountLock returns the mutex for one account, creating it on first use.
// Different accounts get different mutexes and never contend.
func (s *Service) accountLock(key core.AccountKey) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	mu, ok := s.muMap[key]
	if !ok {
		mu = &sync.Mutex{}
		s.muMap[key] = mu
	}
	return mu
}

// GetBalance returns the current balance. Unknown accounts read as zero
// balance, not as an error: accounts exist implicitly.
func (s *Service) GetBalance(ctx context.Context, key core.AccountKey) (BalanceResult, error) {
	if err := key.Validate(); err != nil {
		return BalanceResult{}, fmt.Errorf("account key: %w", err)
	}
	rec, err := s.repo.GetAccount(ctx, key)
	if err != nil {
		return BalanceResult{}, fmt.Errorf("get account %s: %w", key, err)
	}
	return BalanceResult{Balance: rec.Balance, AsOf: rec.UpdatedAt}, nil
}

// ApplyDelta appends one balance change. Calls with a transaction ref that
// was already applied are safe no-ops returning the original result.
func (s *Service) ApplyDelta(ctx context.Context, key core.AccountKey, amount core.Money, ref string, occurredAt time.Time, note string, source core.EntrySource) (DeltaResult, error) {
	start := time.Now()

	if err := key.Validate(); err != nil {
		return DeltaResult{}, fmt.Errorf("account key: %w", err)
	}
	if err := amount.Validate(); err != nil {
		s.recordRejected("invalid_amount")
		return DeltaResult{}, err
	}
	if strings.TrimSpace(ref) == "" {
		s.recordRejected("empty_ref")
		return DeltaResult{}, core.ErrEmptyTransactionRef
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	mu := s.accountLock(key)
	mu.Lock()
	defer mu.Unlock()

	// Idempotency: a ref seen before means the caller is retrying.
	existing, err := s.repo.FindEntryByRef(ctx, key, ref)
	if err != nil {
		return DeltaResult{}, fmt.Errorf("lookup ref %q for %s: %w", ref, key, err)
	}
	if existing != nil {
		return s.replayResult(ctx, key, *existing), nil
	}

	rec, err := s.repo.GetAccount(ctx, key)
	if err != nil {
		return DeltaResult{}, fmt.Errorf("get account %s: %w", key, err)
	}

	entry := core.Entry{
		ID:               s.ids.NewEntryID("txn", occurredAt),
		OccurredAt:       occurredAt.UTC(),
		Amount:           amount,
		ResultingBalance: core.Money{Cents: rec.Balance.Cents + amount.Cents},
		TransactionRef:   ref,
		Note:             note,
		Source:           source,
	}
	if err := entry.Validate(); err != nil {
		s.recordRejected("invalid_entry")
		return DeltaResult{}, err
	}

	if err := s.repo.AppendEntry(ctx, key, entry); err != nil {
		// A concurrent writer beat us to this ref; hand back its result.
		if errors.Is(err, core.ErrDuplicateTransaction) {
			existing, lookupErr := s.repo.FindEntryByRef(ctx, key, ref)
			if lookupErr == nil && existing != nil {
				return s.replayResult(ctx, key, *existing), nil
			}
		}
		return DeltaResult{}, fmt.Errorf("append entry for %s: %w", key, err)
	}

	if s.metrics != nil {
		s.metrics.RecordAppend(string(source), time.Since(start))
		s.metrics.SetBalance(key.ClientID, key.UnitID, entry.ResultingBalance.Cents)
	}
	s.publishRecorded(ctx, key, entry)

	slog.InfoContext(ctx, "Ledger entry appended",
		"client_id", key.ClientID,
		"unit_id", key.UnitID,
		"entry_id", entry.ID,
		"amount_cents", entry.Amount.Cents,
		"resulting_balance_cents", entry.ResultingBalance.Cents,
		"transaction_ref", entry.TransactionRef,
		"source", string(entry.Source))

	return DeltaResult{
		Previous: rec.Balance,
		New:      entry.ResultingBalance,
		Entry:    entry,
	}, nil
}

// AppendManualEntry records an administrative correction. Same contract as
// ApplyDelta, distinguished only by the source category.
func (s *Service) AppendManualEntry(ctx context.Context, key core.AccountKey, amount core.Money, occurredAt time.Time, ref, note string) (DeltaResult, error) {
	return s.ApplyDelta(ctx, key, amount, ref, occurredAt, note, core.SourceManual)
}

// GetHistory returns entries most recent first. Limits above the maximum
// are clamped, not rejected; non-positive limits get the default.
func (s *Service) GetHistory(ctx context.Context, key core.AccountKey, limit int) ([]core.Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("account key: %w", err)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := s.repo.ListEntries(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries for %s: %w", key, err)
	}
	return entries, nil
}

func (s *Service) replayResult(ctx context.Context, key core.AccountKey, e core.Entry) DeltaResult {
	if s.metrics != nil {
		s.metrics.RecordReplay()
	}
	slog.InfoContext(ctx, "Duplicate transaction ref, returning original result",
		"client_id", key.ClientID,
		"unit_id", key.UnitID,
		"transaction_ref", e.TransactionRef,
		"entry_id", e.ID)
	return DeltaResult{
		Previous: core.Money{Cents: e.ResultingBalance.Cents - e.Amount.Cents},
		New:      e.ResultingBalance,
		Entry:    e,
		Replayed: true,
	}
}

func (s *Service) recordRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordRejected(reason)
	}
}

func (s *Service) publishRecorded(ctx context.Context, key core.AccountKey, e core.Entry) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishEntryRecorded(ctx, key, e); err != nil {
		// The entry is durable; the event is not worth failing the caller over.
		slog.ErrorContext(ctx, "Failed to publish entry-recorded event",
			"client_id", key.ClientID,
			"unit_id", key.UnitID,
			"entry_id", e.ID,
			"error", err)
	}
}
