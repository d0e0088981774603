package models

import (
	"fmt"
	"time"
)

// BillingInterval represents how often a recurring expense renews
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
)

// RecurringExpense is a subscription-style cost (SaaS seat, hosting, ...)
// whose amount is split across cost centers by percentage.
type RecurringExpense struct {
	ID            string          `json:"id" db:"id"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	Name          string          `json:"name" db:"name"`
	Vendor        string          `json:"vendor,omitempty" db:"vendor"`
	AmountCents   int64           `json:"amount_cents" db:"amount_cents"`
	Currency      string          `json:"currency" db:"currency"`
	Interval      BillingInterval `json:"interval" db:"billing_interval"`
	NextRenewalAt *time.Time      `json:"next_renewal_at,omitempty" db:"next_renewal_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`

	// 关联数据
	Allocations []ExpenseAllocation `json:"allocations,omitempty"`
}

// ExpenseAllocation assigns a share of a recurring expense to a cost
// center. PercentBps is in basis points (10000 == 100%); AmountCents is
// always re-derived from the expense amount, never stored independently.
type ExpenseAllocation struct {
	ID          string `json:"id" db:"id"`
	ExpenseID   string `json:"expense_id" db:"expense_id"`
	CostCenter  string `json:"cost_center" db:"cost_center"`
	PercentBps  int64  `json:"percent_bps" db:"percent_bps"`
	AmountCents int64  `json:"amount_cents" db:"amount_cents"`
}

// ReconcileAllocations normalizes allocation percentages to exactly 100%
// and re-derives the per-share amounts from amountCents. Percentages that
// do not sum to 10000 bps are scaled proportionally; rounding remainders
// (both in bps and in cents) land on the largest share so the totals
// always add up exactly.
func ReconcileAllocations(amountCents int64, allocs []ExpenseAllocation) ([]ExpenseAllocation, error) {
	if amountCents < 0 {
		return nil, fmt.Errorf("expense amount must be non-negative, got %d", amountCents)
	}
	if len(allocs) == 0 {
		return nil, fmt.Errorf("at least one allocation is required")
	}

	var totalBps int64
	for i, a := range allocs {
		if a.PercentBps < 0 {
			return nil, fmt.Errorf("allocation %d (%s) has negative percent", i, a.CostCenter)
		}
		totalBps += a.PercentBps
	}
	if totalBps == 0 {
		return nil, fmt.Errorf("allocation percentages sum to zero")
	}

	out := make([]ExpenseAllocation, len(allocs))
	copy(out, allocs)

	// Scale to exactly 10000 bps.
	largest := 0
	var scaledSum int64
	for i := range out {
		out[i].PercentBps = out[i].PercentBps * 10000 / totalBps
		scaledSum += out[i].PercentBps
		if out[i].PercentBps > out[largest].PercentBps {
			largest = i
		}
	}
	out[largest].PercentBps += 10000 - scaledSum

	// Derive amounts; remainder cents go to the largest share.
	var centsSum int64
	for i := range out {
		out[i].AmountCents = amountCents * out[i].PercentBps / 10000
		centsSum += out[i].AmountCents
	}
	out[largest].AmountCents += amountCents - centsSum

	return out, nil
}
