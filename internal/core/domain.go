package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// SourceDuesPayment marks entries created when a resident pays periodic dues.
	SourceDuesPayment EntrySource = "dues_payment"
	// SourceDuesCharge marks entries created by the billing cycle.
	SourceDuesCharge EntrySource = "dues_charge"
	// SourceWaterCharge marks entries created by water-consumption billing.
	SourceWaterCharge EntrySource = "water_charge"
	// SourceManual marks administrative corrections.
	SourceManual EntrySource = "manual"
)

type (
	// EntrySource categorizes where a balance change came from. The ledger
	// never interprets it beyond equality checks; aggregation filters on it.
	EntrySource string

	// AccountKey identifies one unit's credit account. Both parts are
	// externally assigned and immutable.
	AccountKey struct {
		ClientID string
		UnitID   string
	}

	Money struct {
		Cents int64
	}

	// Entry is one immutable balance change. Corrections are new entries
	// with offsetting amounts, never edits.
	Entry struct {
		ID               string
		OccurredAt       time.Time // UTC, when the change is attributed
		Amount           Money     // signed: positive grows credit
		ResultingBalance Money     // running balance after this entry
		TransactionRef   string    // idempotency key
		Note             string
		Source           EntrySource
	}
)

var (
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyTransactionRef  = errors.New("empty transaction ref")
	ErrDuplicateTransaction = errors.New("duplicate transaction ref")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

func (k AccountKey) Validate() error {
	if strings.TrimSpace(k.ClientID) == "" {
		return errors.New("empty client id")
	}
	if strings.TrimSpace(k.UnitID) == "" {
		return errors.New("empty unit id")
	}
	return nil
}

func (k AccountKey) String() string {
	return k.ClientID + "/" + k.UnitID
}

// Validate rejects a zero delta. Negative amounts are legal: they represent
// charges against the credit balance.
func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Entry) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.TransactionRef) == "" {
		return ErrEmptyTransactionRef
	}
	if e.OccurredAt.IsZero() {
		return errors.New("zero occurred-at instant")
	}
	if len(e.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	switch e.Source {
	case SourceDuesPayment, SourceDuesCharge, SourceWaterCharge, SourceManual:
	default:
		return errors.New("unknown entry source")
	}
	return nil
}
