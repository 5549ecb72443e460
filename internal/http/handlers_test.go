package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"condoledger/internal/fiscal"
	"condoledger/internal/ident"
	"condoledger/internal/ledger"
	"condoledger/internal/metrics"
	"condoledger/internal/reporting"
	"condoledger/internal/storage/memory"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cal, err := fiscal.NewCalendar("UTC")
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewStore(1)
	ids := ident.NewFormatter(cal)
	s := &Server{
		ledger:  ledger.NewService(store, ids, nil, nil),
		reports: reporting.NewAggregator(store, cal),
		ids:     ids,
		metrics: metrics.NewCollector(),
	}
	return s.routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rr.Body.String())
		}
	}
	return rr, decoded
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rr, body := doJSON(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("status %d body %v", rr.Code, body)
	}
}

func TestApplyDeltaFlow(t *testing.T) {
	h := newTestHandler(t)
	base := "/api/v1/accounts/condo-a/unit-1"

	rr, body := doJSON(t, h, http.MethodPost, base+"/deltas",
		`{"amount_cents":10000,"transaction_ref":"ref-A","source":"dues_payment","occurred_at":"2025-09-15T10:00:00Z"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %v", rr.Code, body)
	}
	if body["new_balance_cents"].(float64) != 10000 {
		t.Fatalf("new balance %v", body["new_balance_cents"])
	}
	entry := body["entry"].(map[string]any)
	if entry["occurred_on"] != "2025-09-15" {
		t.Fatalf("occurred_on = %v", entry["occurred_on"])
	}

	// Retrying the same ref is 200, not 201, and flags the replay.
	rr, body = doJSON(t, h, http.MethodPost, base+"/deltas",
		`{"amount_cents":10000,"transaction_ref":"ref-A","source":"dues_payment"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rr.Code)
	}
	if body["replayed"] != true {
		t.Fatalf("replay not flagged: %v", body)
	}

	rr, body = doJSON(t, h, http.MethodGet, base+"/balance", "")
	if rr.Code != http.StatusOK || body["balance_cents"].(float64) != 10000 {
		t.Fatalf("balance status %d body %v", rr.Code, body)
	}

	rr, body = doJSON(t, h, http.MethodGet, base+"/entries?limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("entries status %d", rr.Code)
	}
	entries := body["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestApplyDeltaRejections(t *testing.T) {
	h := newTestHandler(t)
	base := "/api/v1/accounts/condo-a/unit-1"

	cases := []struct {
		name string
		body string
		code int
	}{
		{"zero amount", `{"amount_cents":0,"transaction_ref":"r1","source":"manual"}`, http.StatusUnprocessableEntity},
		{"missing ref", `{"amount_cents":100,"source":"manual"}`, http.StatusUnprocessableEntity},
		{"missing source", `{"amount_cents":100,"transaction_ref":"r1"}`, http.StatusBadRequest},
		{"unknown source", `{"amount_cents":100,"transaction_ref":"r1","source":"lottery"}`, http.StatusBadRequest},
		{"bad occurred_at", `{"amount_cents":100,"transaction_ref":"r1","source":"manual","occurred_at":"yesterday"}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, _ := doJSON(t, h, http.MethodPost, base+"/deltas", tc.body)
			if rr.Code != tc.code {
				t.Fatalf("status = %d, want %d", rr.Code, tc.code)
			}
		})
	}
}

func TestManualEntry(t *testing.T) {
	h := newTestHandler(t)
	base := "/api/v1/accounts/condo-a/unit-1"

	rr, body := doJSON(t, h, http.MethodPost, base+"/manual-entries",
		`{"amount_cents":-250,"transaction_ref":"adj-1","source":"manual","note":"rounding correction"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body %v", rr.Code, body)
	}
	entry := body["entry"].(map[string]any)
	if entry["source"] != "manual" {
		t.Fatalf("source = %v", entry["source"])
	}
}

func TestUnknownAccountBalanceIsZero(t *testing.T) {
	h := newTestHandler(t)
	rr, body := doJSON(t, h, http.MethodGet, "/api/v1/accounts/ghost/u1/balance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["balance_cents"].(float64) != 0 {
		t.Fatalf("balance = %v", body["balance_cents"])
	}
}

func TestQuarterSummaryEndpoint(t *testing.T) {
	h := newTestHandler(t)
	base := "/api/v1/accounts/condo-a/unit-1"

	for i, month := range []string{"01", "02", "03"} {
		body := `{"amount_cents":300,"transaction_ref":"p` + month + `","source":"dues_payment","occurred_at":"2025-` + month + `-10T00:00:00Z"}`
		rr, _ := doJSON(t, h, http.MethodPost, base+"/deltas", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed %d status %d", i, rr.Code)
		}
	}

	rr, body := doJSON(t, h, http.MethodGet, base+"/quarters/2025/1?scheduled_monthly_cents=1000", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body %v", rr.Code, body)
	}
	if body["paid_total_cents"].(float64) != 900 {
		t.Fatalf("paid = %v", body["paid_total_cents"])
	}
	if body["scheduled_total_cents"].(float64) != 3000 {
		t.Fatalf("scheduled = %v", body["scheduled_total_cents"])
	}
	if body["status"] != "partial" {
		t.Fatalf("status = %v", body["status"])
	}
	months := body["months"].([]any)
	if len(months) != 3 {
		t.Fatalf("months = %d", len(months))
	}

	t.Run("missing scheduled amount", func(t *testing.T) {
		rr, _ := doJSON(t, h, http.MethodGet, base+"/quarters/2025/1", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
	})
	t.Run("invalid quarter", func(t *testing.T) {
		rr, _ := doJSON(t, h, http.MethodGet, base+"/quarters/2025/9?scheduled_monthly_cents=1000", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
