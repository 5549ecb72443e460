package amqp

import (
	"encoding/json"
	"time"

	"condoledger/internal/core"
)

// EntryRecordedMessage notifies consumers that one ledger entry was
// committed. It carries the full entry so consumers never need to read the
// database; the ledger remains the single source of truth either way.
type EntryRecordedMessage struct {
	ClientID              string    `json:"client_id"`
	UnitID                string    `json:"unit_id"`
	EntryID               string    `json:"entry_id"`
	OccurredAt            time.Time `json:"occurred_at"`
	AmountCents           int64     `json:"amount_cents"`
	ResultingBalanceCents int64     `json:"resulting_balance_cents"`
	TransactionRef        string    `json:"transaction_ref"`
	Source                string    `json:"source"`
	Note                  string    `json:"note,omitempty"`
	PublishedAt           time.Time `json:"published_at"`
}

func NewEntryRecordedMessage(key core.AccountKey, e core.Entry) *EntryRecordedMessage {
	return &EntryRecordedMessage{
		ClientID:              key.ClientID,
		UnitID:                key.UnitID,
		EntryID:               e.ID,
		OccurredAt:            e.OccurredAt,
		AmountCents:           e.Amount.Cents,
		ResultingBalanceCents: e.ResultingBalance.Cents,
		TransactionRef:        e.TransactionRef,
		Source:                string(e.Source),
		Note:                  e.Note,
		PublishedAt:           time.Now().UTC(),
	}
}

func (m *EntryRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryRecordedMessageFromJSON(data []byte) (*EntryRecordedMessage, error) {
	var msg EntryRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
