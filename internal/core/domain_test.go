package core

import (
	"testing"
	"time"
)

func TestAccountKeyValidate(t *testing.T) {
	cases := []struct {
		k  AccountKey
		ok bool
	}{
		{AccountKey{ClientID: "c1", UnitID: "u7"}, true},
		{AccountKey{ClientID: "", UnitID: "u7"}, false},
		{AccountKey{ClientID: "c1", UnitID: "  "}, false},
		{AccountKey{}, false},
	}
	for i, tc := range cases {
		err := tc.k.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1500}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: -1500}).Validate(); err != nil {
		t.Fatalf("negative amounts are legal charges, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
}

func TestEntryValidate(t *testing.T) {
	valid := Entry{
		ID:             "txn-20250915T120000-abc123",
		OccurredAt:     time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC),
		Amount:         Money{Cents: 10000},
		TransactionRef: "pay-001",
		Source:         SourceDuesPayment,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}

	t.Run("zero amount", func(t *testing.T) {
		e := valid
		e.Amount = Money{}
		if err := e.Validate(); err != ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})
	t.Run("blank ref", func(t *testing.T) {
		e := valid
		e.TransactionRef = " "
		if err := e.Validate(); err != ErrEmptyTransactionRef {
			t.Fatalf("expected ErrEmptyTransactionRef, got %v", err)
		}
	})
	t.Run("zero instant", func(t *testing.T) {
		e := valid
		e.OccurredAt = time.Time{}
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for zero instant")
		}
	})
	t.Run("unknown source", func(t *testing.T) {
		e := valid
		e.Source = "mystery"
		if err := e.Validate(); err == nil {
			t.Fatal("expected error for unknown source")
		}
	})
}
