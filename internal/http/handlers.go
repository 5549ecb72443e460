package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"condoledger/internal/core"
	"condoledger/internal/ledger"
)

type entryResponse struct {
	ID                    string `json:"id"`
	OccurredAt            string `json:"occurred_at"`
	OccurredOn            string `json:"occurred_on"` // YYYY-MM-DD in the deployment zone
	AmountCents           int64  `json:"amount_cents"`
	ResultingBalanceCents int64  `json:"resulting_balance_cents"`
	TransactionRef        string `json:"transaction_ref"`
	Note                  string `json:"note,omitempty"`
	Source                string `json:"source"`
}

type balanceResponse struct {
	ClientID     string `json:"client_id"`
	UnitID       string `json:"unit_id"`
	BalanceCents int64  `json:"balance_cents"`
	AsOf         string `json:"as_of,omitempty"`
}

type deltaResponse struct {
	PreviousBalanceCents int64         `json:"previous_balance_cents"`
	NewBalanceCents      int64         `json:"new_balance_cents"`
	Replayed             bool          `json:"replayed"`
	Entry                entryResponse `json:"entry"`
}

type monthResponse struct {
	FiscalMonth int      `json:"fiscal_month"`
	PaidCents   int64    `json:"paid_cents"`
	EntryIDs    []string `json:"entry_ids,omitempty"`
}

type quarterResponse struct {
	FiscalYear          int             `json:"fiscal_year"`
	Quarter             int             `json:"quarter"`
	ScheduledTotalCents int64           `json:"scheduled_total_cents"`
	PaidTotalCents      int64           `json:"paid_total_cents"`
	Status              string          `json:"status"`
	Months              []monthResponse `json:"months"`
}

func (s *Server) entryToResponse(e core.Entry) entryResponse {
	return entryResponse{
		ID:                    e.ID,
		OccurredAt:            e.OccurredAt.Format(time.RFC3339),
		OccurredOn:            s.ids.FormatDate(e.OccurredAt),
		AmountCents:           e.Amount.Cents,
		ResultingBalanceCents: e.ResultingBalance.Cents,
		TransactionRef:        e.TransactionRef,
		Note:                  e.Note,
		Source:                string(e.Source),
	}
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	key, err := parseAccountKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ledger.GetBalance(r.Context(), key)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to get balance",
			"client_id", key.ClientID, "unit_id", key.UnitID, "error", err)
		writeDomainError(w, err)
		return
	}

	resp := balanceResponse{
		ClientID:     key.ClientID,
		UnitID:       key.UnitID,
		BalanceCents: res.Balance.Cents,
	}
	if !res.AsOf.IsZero() {
		resp.AsOf = res.AsOf.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApplyDelta(w http.ResponseWriter, r *http.Request) {
	key, err := parseAccountKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := parseDeltaRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ledger.ApplyDelta(r.Context(), key, req.Amount, req.Ref, req.OccurredAt, req.Note, req.Source)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		// The mutation had already been applied; this is a successful
		// retry, not a new resource.
		status = http.StatusOK
	}
	writeJSON(w, status, s.deltaToResponse(res))
}

func (s *Server) handleAppendManualEntry(w http.ResponseWriter, r *http.Request) {
	key, err := parseAccountKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := parseDeltaRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.ledger.AppendManualEntry(r.Context(), key, req.Amount, req.OccurredAt, req.Ref, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, s.deltaToResponse(res))
}

func (s *Server) deltaToResponse(res ledger.DeltaResult) deltaResponse {
	return deltaResponse{
		PreviousBalanceCents: res.Previous.Cents,
		NewBalanceCents:      res.New.Cents,
		Replayed:             res.Replayed,
		Entry:                s.entryToResponse(res.Entry),
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	key, err := parseAccountKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}

	entries, err := s.ledger.GetHistory(r.Context(), key, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to get history",
			"client_id", key.ClientID, "unit_id", key.UnitID, "error", err)
		writeDomainError(w, err)
		return
	}

	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = s.entryToResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleQuarterSummary(w http.ResponseWriter, r *http.Request) {
	key, err := parseAccountKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fiscalYear, err := strconv.Atoi(r.PathValue("fiscalYear"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "fiscal year must be an integer")
		return
	}
	quarter, err := strconv.Atoi(r.PathValue("quarter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "quarter must be an integer")
		return
	}
	scheduled, err := strconv.ParseInt(r.URL.Query().Get("scheduled_monthly_cents"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduled_monthly_cents is required and must be an integer")
		return
	}

	sum, err := s.reports.SummarizeQuarter(r.Context(), key, fiscalYear, quarter, core.Money{Cents: scheduled})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := quarterResponse{
		FiscalYear:          sum.FiscalYear,
		Quarter:             sum.Quarter,
		ScheduledTotalCents: sum.ScheduledTotal.Cents,
		PaidTotalCents:      sum.PaidTotal.Cents,
		Status:              string(sum.Status),
	}
	for _, m := range sum.Months {
		resp.Months = append(resp.Months, monthResponse{
			FiscalMonth: m.FiscalMonth,
			PaidCents:   m.Paid.Cents,
			EntryIDs:    m.EntryIDs,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
