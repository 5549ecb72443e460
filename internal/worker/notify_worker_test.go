package worker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"condoledger/internal/amqp"
	"condoledger/internal/core"
	"condoledger/internal/fiscal"
	"condoledger/internal/ident"
)

func testMessage() *amqp.EntryRecordedMessage {
	key := core.AccountKey{ClientID: "c1", UnitID: "u1"}
	return amqp.NewEntryRecordedMessage(key, core.Entry{
		ID:               "txn-1",
		OccurredAt:       time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC),
		Amount:           core.Money{Cents: 10000},
		ResultingBalance: core.Money{Cents: 10000},
		TransactionRef:   "pay-1",
		Source:           core.SourceDuesPayment,
	})
}

func newIdent(t *testing.T) *ident.Formatter {
	t.Helper()
	cal, err := fiscal.NewCalendar("UTC")
	if err != nil {
		t.Fatal(err)
	}
	return ident.NewFormatter(cal)
}

func TestHandleEntryRecordedPostsWebhook(t *testing.T) {
	var received amqp.EntryRecordedMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewNotifyWorker(srv.URL, newIdent(t))
	if err := w.HandleEntryRecorded(testMessage()); err != nil {
		t.Fatal(err)
	}
	if received.EntryID != "txn-1" || received.AmountCents != 10000 {
		t.Fatalf("webhook payload lost data: %+v", received)
	}
}

func TestHandleEntryRecordedWebhookFailureRequeues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewNotifyWorker(srv.URL, newIdent(t))
	if err := w.HandleEntryRecorded(testMessage()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestHandleEntryRecordedNoWebhook(t *testing.T) {
	w := NewNotifyWorker("", newIdent(t))
	if err := w.HandleEntryRecorded(testMessage()); err != nil {
		t.Fatalf("log-only mode must not fail: %v", err)
	}
}
