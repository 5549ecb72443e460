// Package services orchestrates recurring ledger operations.
package services

import (
	"context"
	"fmt"
	"time"

	"condoledger/internal/core"
	"condoledger/internal/fiscal"
	"condoledger/internal/ledger"
	"condoledger/internal/log"
)

// DuesProcessor charges every known account its monthly dues. The charge
// ref is deterministic per account and fiscal month, so a run can be
// repeated or overlap a previous one without double-billing: the ledger's
// idempotency contract turns the second attempt into a no-op.
type DuesProcessor struct {
	repo         ledger.Repository
	svc          *ledger.Service
	cal          *fiscal.Calendar
	monthlyCents int64
	logger       *log.Logger
}

func NewDuesProcessor(repo ledger.Repository, svc *ledger.Service, cal *fiscal.Calendar, monthlyCents int64) *DuesProcessor {
	return &DuesProcessor{
		repo:         repo,
		svc:          svc,
		cal:          cal,
		monthlyCents: monthlyCents,
		logger:       log.New(log.Config{Component: "dues"}),
	}
}

// ChargeRef builds the idempotency key for one account's dues in one fiscal
// month.
func ChargeRef(key core.AccountKey, p fiscal.Period) string {
	return fmt.Sprintf("dues-%s-%s-FY%04d-M%02d", key.ClientID, key.UnitID, p.Year, p.Month)
}

// ProcessMonth bills every account for the fiscal month that contains now.
// Returns how many accounts were newly charged; already-billed accounts are
// skipped via idempotent replay.
func (p *DuesProcessor) ProcessMonth(ctx context.Context, now time.Time) (int, error) {
	accounts, err := p.repo.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing monthly dues",
		"accounts", len(accounts),
		"monthly_cents", p.monthlyCents)

	charged := 0
	for _, acc := range accounts {
		period, err := p.cal.ToPeriod(now, acc.FiscalYearStartMonth)
		if err != nil {
			return charged, fmt.Errorf("fiscal period for %s: %w", acc.Key, err)
		}

		ref := ChargeRef(acc.Key, period)
		note := fmt.Sprintf("monthly dues %s", period)
		res, err := p.svc.ApplyDelta(ctx, acc.Key, core.Money{Cents: -p.monthlyCents}, ref, now, note, core.SourceDuesCharge)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to charge dues",
				"client_id", acc.Key.ClientID,
				"unit_id", acc.Key.UnitID,
				"transaction_ref", ref,
				"error", err)
			continue
		}
		if res.Replayed {
			continue
		}

		charged++
		p.logger.InfoContext(ctx, "Charged monthly dues",
			"client_id", acc.Key.ClientID,
			"unit_id", acc.Key.UnitID,
			"transaction_ref", ref,
			"new_balance_cents", res.New.Cents)
	}

	p.logger.InfoContext(ctx, "Monthly dues processing complete",
		"charged", charged,
		"total_checked", len(accounts))

	return charged, nil
}
