package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"condoledger/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{40, 30 * time.Second}, // shift overflow still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestEntryRecordedMessageRoundTrip(t *testing.T) {
	key := core.AccountKey{ClientID: "c1", UnitID: "u1"}
	entry := core.Entry{
		ID:               "txn-20250915T120000-abc123",
		OccurredAt:       time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC),
		Amount:           core.Money{Cents: 10000},
		ResultingBalance: core.Money{Cents: 15000},
		TransactionRef:   "pay-42",
		Source:           core.SourceDuesPayment,
	}

	body, err := NewEntryRecordedMessage(key, entry).ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	got, err := EntryRecordedMessageFromJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	if got.EntryID != entry.ID || got.AmountCents != 10000 || got.ResultingBalanceCents != 15000 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if got.ClientID != "c1" || got.UnitID != "u1" || got.Source != "dues_payment" {
		t.Fatalf("round trip lost account data: %+v", got)
	}

	if _, err := EntryRecordedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
