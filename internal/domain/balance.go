package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Derived balance aggregates (never persisted)
// ============================================================

// WeekBreakdown is one billing week anchored to the due weekday: what was
// owed, what arrived, and which transactions contributed.
type WeekBreakdown struct {
	DueDate      time.Time       `json:"due_date"`
	AmountDue    decimal.Decimal `json:"amount_due"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Transactions []Transaction   `json:"transactions,omitempty"`
}

// FlatmateBalance is the week-by-week ledger for one flatmate from the
// analysis start date through now, with running totals. It is recomputed on
// demand and owned by the calling request.
type FlatmateBalance struct {
	FlatmateID   string          `json:"flatmate_id"`
	FlatmateName string          `json:"flatmate_name,omitempty"`
	Weeks        []WeekBreakdown `json:"weeks"`
	TotalDue     decimal.Decimal `json:"total_due"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalBalance decimal.Decimal `json:"total_balance"` // paid - due; negative = behind
}

// Behind reports whether the flatmate owes money.
func (b *FlatmateBalance) Behind() bool {
	return b.TotalBalance.IsNegative()
}
