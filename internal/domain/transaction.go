package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions
// ============================================================

// MatchType is the rule category that produced a transaction-to-flatmate
// assignment.
type MatchType string

const (
	MatchNone    MatchType = "none"
	MatchAccount MatchType = "account"
	MatchCard    MatchType = "card"
	MatchName    MatchType = "name"
	MatchManual  MatchType = "manual"
)

// Transaction is an immutable external fact once synced from the bank feed.
// Only the match fields are mutated afterwards, and a manual match is never
// overwritten by automatic re-matching.
type Transaction struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`

	Date                time.Time       `json:"date"`
	Amount              decimal.Decimal `json:"amount"` // positive = money in
	Description         string          `json:"description"`
	Merchant            string          `json:"merchant,omitempty"`
	Category            string          `json:"category,omitempty"`
	CardSuffix          string          `json:"card_suffix,omitempty"`
	CounterpartyAccount string          `json:"counterparty_account,omitempty"`
	RawPayload          json.RawMessage `json:"raw_payload,omitempty"`

	// Match fields, owned by the matcher (or a manual override).
	MatchedUserID   string    `json:"matched_user_id,omitempty"`
	MatchType       MatchType `json:"match_type"`
	MatchConfidence float64   `json:"match_confidence"`
	ManualMatch     bool      `json:"manual_match"`
}

// IsRentPayment reports whether the transaction counts towards a flatmate's
// weekly contribution: money paid into the shared account, as opposed to
// expense card spend out of it.
func (t *Transaction) IsRentPayment() bool {
	return t.Amount.IsPositive()
}

// Matched reports whether any flatmate is currently assigned.
func (t *Transaction) Matched() bool {
	return t.MatchedUserID != ""
}
