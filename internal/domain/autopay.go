package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Autopayment plan (derived, never persisted)
// ============================================================

// PlanMode selects how a balance discrepancy is corrected.
type PlanMode string

const (
	// PlanSpreadCatchup spreads the discrepancy over a fixed correction
	// window on top of (or below) the nominal weekly rate.
	PlanSpreadCatchup PlanMode = "spread_catchup"
	// PlanImmediate clears arrears with a one-time payment at the next due
	// date, then resumes the nominal rate.
	PlanImmediate PlanMode = "immediate"
)

// StepKind distinguishes the three kinds of recommended standing-order steps.
type StepKind string

const (
	StepOneTime    StepKind = "one_time"
	StepCorrection StepKind = "correction"
	StepStandard   StepKind = "standard"
)

// AutopaymentStep is one recommended standing-order instruction: pay Amount
// weekly from StartDate through EndDate (both inclusive due dates).
type AutopaymentStep struct {
	Number      int             `json:"number"`
	Kind        StepKind        `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Weeks       int             `json:"weeks"`
	Description string          `json:"description"`
}

// AmountValue is the copyable amount literal for bank UIs, always with two
// decimal places.
func (s *AutopaymentStep) AmountValue() string {
	return s.Amount.StringFixed(2)
}

// StartDateValue is the copyable first-payment date literal.
func (s *AutopaymentStep) StartDateValue() string {
	return s.StartDate.Format("2006-01-02")
}
