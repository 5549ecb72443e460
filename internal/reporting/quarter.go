// Package reporting derives read-only fiscal summaries from ledger history.
package reporting

import (
	"context"
	"fmt"

	"condoledger/internal/core"
	"condoledger/internal/fiscal"
	"condoledger/internal/ledger"
)

type QuarterStatus string

const (
	StatusUnpaid   QuarterStatus = "unpaid"
	StatusPartial  QuarterStatus = "partial"
	StatusPaid     QuarterStatus = "paid"
	StatusOverpaid QuarterStatus = "overpaid"
)

// MonthContribution is one fiscal month's share of a quarter, derived from
// the same entries the quarter total is built from. Months without payments
// still appear, with a zero amount.
type MonthContribution struct {
	FiscalMonth int
	Paid        core.Money
	EntryIDs    []string
}

// QuarterSummary aggregates three fiscal months of dues payments against a
// scheduled amount. It is recomputed from the full history on every call and
// is never persisted: there is no stored quarterly record to drift from the
// monthly facts.
type QuarterSummary struct {
	FiscalYear     int
	Quarter        int
	ScheduledTotal core.Money
	PaidTotal      core.Money
	Status         QuarterStatus
	Months         [3]MonthContribution
}

// Aggregator reads ledger history and the fiscal calendar; it never writes.
type Aggregator struct {
	repo ledger.Repository
	cal  *fiscal.Calendar
}

func NewAggregator(repo ledger.Repository, cal *fiscal.Calendar) *Aggregator {
	return &Aggregator{repo: repo, cal: cal}
}

// SummarizeQuarter totals dues payments attributed to one fiscal quarter.
// Only entries whose source is a dues payment count; sign alone does not
// make an entry a payment. Quarters are always exactly three fiscal months.
func (a *Aggregator) SummarizeQuarter(ctx context.Context, key core.AccountKey, fiscalYear, quarter int, scheduledMonthly core.Money) (QuarterSummary, error) {
	if err := key.Validate(); err != nil {
		return QuarterSummary{}, fmt.Errorf("account key: %w", err)
	}
	months, err := fiscal.QuarterMonths(quarter)
	if err != nil {
		return QuarterSummary{}, err
	}

	rec, err := a.repo.GetAccount(ctx, key)
	if err != nil {
		return QuarterSummary{}, fmt.Errorf("get account %s: %w", key, err)
	}

	entries, err := a.repo.ListAllEntries(ctx, key)
	if err != nil {
		return QuarterSummary{}, fmt.Errorf("list entries for %s: %w", key, err)
	}

	summary := QuarterSummary{
		FiscalYear:     fiscalYear,
		Quarter:        quarter,
		ScheduledTotal: core.Money{Cents: scheduledMonthly.Cents * 3},
	}
	for i, m := range months {
		summary.Months[i].FiscalMonth = m
	}

	for _, e := range entries {
		if e.Source != core.SourceDuesPayment {
			continue
		}
		period, err := a.cal.ToPeriod(e.OccurredAt, rec.FiscalYearStartMonth)
		if err != nil {
			return QuarterSummary{}, fmt.Errorf("fiscal period of entry %s: %w", e.ID, err)
		}
		if period.Year != fiscalYear || period.Quarter != quarter {
			continue
		}
		idx := period.Month - months[0]
		summary.Months[idx].Paid.Cents += e.Amount.Cents
		summary.Months[idx].EntryIDs = append(summary.Months[idx].EntryIDs, e.ID)
		summary.PaidTotal.Cents += e.Amount.Cents
	}

	summary.Status = statusFor(summary.PaidTotal.Cents, summary.ScheduledTotal.Cents)
	return summary, nil
}

func statusFor(paid, scheduled int64) QuarterStatus {
	switch {
	case paid == 0:
		return StatusUnpaid
	case paid < scheduled:
		return StatusPartial
	case paid == scheduled:
		return StatusPaid
	default:
		return StatusOverpaid
	}
}
