package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"condoledger/internal/core"
)

const maxBodyBytes = 64 << 10

// deltaRequest is the wire form of a balance mutation. Amounts cross this
// boundary as signed integer cents, never floating point.
type deltaRequest struct {
	AmountCents    int64  `json:"amount_cents"`
	TransactionRef string `json:"transaction_ref"`
	OccurredAt     string `json:"occurred_at,omitempty"` // RFC 3339; empty means now
	Note           string `json:"note,omitempty"`
	Source         string `json:"source"`
}

type parsedDelta struct {
	Amount     core.Money
	Ref        string
	OccurredAt time.Time
	Note       string
	Source     core.EntrySource
}

func parseAccountKey(r *http.Request) (core.AccountKey, error) {
	key := core.AccountKey{
		ClientID: strings.TrimSpace(r.PathValue("clientID")),
		UnitID:   strings.TrimSpace(r.PathValue("unitID")),
	}
	if err := key.Validate(); err != nil {
		return core.AccountKey{}, err
	}
	return key, nil
}

func parseDeltaRequest(r *http.Request) (parsedDelta, error) {
	var req deltaRequest
	body := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return parsedDelta{}, fmt.Errorf("decode request body: %w", err)
	}

	out := parsedDelta{
		Amount: core.Money{Cents: req.AmountCents},
		Ref:    strings.TrimSpace(req.TransactionRef),
		Note:   strings.TrimSpace(req.Note),
	}

	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return parsedDelta{}, fmt.Errorf("parse occurred_at %q: %w", req.OccurredAt, err)
		}
		out.OccurredAt = t
	}

	switch req.Source {
	case "dues_payment":
		out.Source = core.SourceDuesPayment
	case "dues_charge":
		out.Source = core.SourceDuesCharge
	case "water_charge":
		out.Source = core.SourceWaterCharge
	case "manual":
		out.Source = core.SourceManual
	case "":
		return parsedDelta{}, fmt.Errorf("missing source")
	default:
		return parsedDelta{}, fmt.Errorf("unknown source %q", req.Source)
	}

	return out, nil
}
