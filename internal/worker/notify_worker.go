// Package worker forwards ledger events to external consumers.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"condoledger/internal/amqp"
	"condoledger/internal/ident"
	"condoledger/internal/log"
)

// NotifyWorker turns entry-recorded messages into webhook notifications for
// the resident-facing application. With no webhook configured it only logs,
// which keeps the queue drained in development setups.
type NotifyWorker struct {
	webhookURL string
	client     *http.Client
	ids        *ident.Formatter
	logger     *log.Logger
}

func NewNotifyWorker(webhookURL string, ids *ident.Formatter) *NotifyWorker {
	return &NotifyWorker{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		ids:        ids,
		logger:     log.New(log.Config{Component: "notify"}),
	}
}

// HandleEntryRecorded processes one message. Errors cause a requeue, so the
// webhook call must only fail for conditions worth retrying.
func (w *NotifyWorker) HandleEntryRecorded(msg *amqp.EntryRecordedMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	w.logger.InfoContext(ctx, "Processing entry-recorded message",
		"client_id", msg.ClientID,
		"unit_id", msg.UnitID,
		"entry_id", msg.EntryID,
		"occurred_on", w.ids.FormatDate(msg.OccurredAt))

	if w.webhookURL == "" {
		return nil
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.InfoContext(ctx, "Notification delivered",
		"entry_id", msg.EntryID,
		"status_code", resp.StatusCode)
	return nil
}
