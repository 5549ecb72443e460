// Package memory provides an in-process Repository used by tests and by
// DATA_BACKEND=memory deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"condoledger/internal/core"
	"condoledger/internal/ledger"
)

type account struct {
	balance   int64
	fiscal    int
	updatedAt time.Time
	entries   []core.Entry
	byRef     map[string]int // transaction ref -> index into entries
}

// Store keeps all accounts behind one RWMutex. The ledger service already
// serializes writers per account; the store lock only guards map structure.
type Store struct {
	mu                 sync.RWMutex
	accounts           map[core.AccountKey]*account
	defaultFiscalStart int
}

func NewStore(defaultFiscalStartMonth int) *Store {
	return &Store{
		accounts:           make(map[core.AccountKey]*account),
		defaultFiscalStart: defaultFiscalStartMonth,
	}
}

func (s *Store) GetAccount(_ context.Context, key core.AccountKey) (ledger.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[key]
	if !ok {
		return ledger.AccountRecord{
			Key:                  key,
			FiscalYearStartMonth: s.defaultFiscalStart,
		}, nil
	}
	return ledger.AccountRecord{
		Key:                  key,
		Balance:              core.Money{Cents: acc.balance},
		FiscalYearStartMonth: acc.fiscal,
		UpdatedAt:            acc.updatedAt,
	}, nil
}

func (s *Store) FindEntryByRef(_ context.Context, key core.AccountKey, ref string) (*core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[key]
	if !ok {
		return nil, nil
	}
	idx, ok := acc.byRef[ref]
	if !ok {
		return nil, nil
	}
	e := acc.entries[idx]
	return &e, nil
}

func (s *Store) AppendEntry(_ context.Context, key core.AccountKey, e core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		acc = &account{
			fiscal: s.defaultFiscalStart,
			byRef:  make(map[string]int),
		}
		s.accounts[key] = acc
	}
	if _, dup := acc.byRef[e.TransactionRef]; dup {
		return core.ErrDuplicateTransaction
	}

	acc.byRef[e.TransactionRef] = len(acc.entries)
	acc.entries = append(acc.entries, e)
	acc.balance = e.ResultingBalance.Cents
	acc.updatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListEntries(_ context.Context, key core.AccountKey, limit int) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[key]
	if !ok {
		return nil, nil
	}
	n := len(acc.entries)
	if limit > n {
		limit = n
	}
	out := make([]core.Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, acc.entries[i])
	}
	return out, nil
}

func (s *Store) ListAllEntries(_ context.Context, key core.AccountKey) ([]core.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[key]
	if !ok {
		return nil, nil
	}
	out := make([]core.Entry, len(acc.entries))
	copy(out, acc.entries)
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.AccountRecord, 0, len(s.accounts))
	for key, acc := range s.accounts {
		out = append(out, ledger.AccountRecord{
			Key:                  key,
			Balance:              core.Money{Cents: acc.balance},
			FiscalYearStartMonth: acc.fiscal,
			UpdatedAt:            acc.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ClientID != out[j].Key.ClientID {
			return out[i].Key.ClientID < out[j].Key.ClientID
		}
		return out[i].Key.UnitID < out[j].Key.UnitID
	})
	return out, nil
}

// SetFiscalStart overrides one account's fiscal-year start month, creating
// the account row if needed. Mirrors the administrative configuration the
// web application applies per client.
func (s *Store) SetFiscalStart(_ context.Context, key core.AccountKey, startMonth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[key]
	if !ok {
		acc = &account{
			fiscal: s.defaultFiscalStart,
			byRef:  make(map[string]int),
		}
		s.accounts[key] = acc
	}
	acc.fiscal = startMonth
	return nil
}

var _ ledger.Repository = (*Store)(nil)
