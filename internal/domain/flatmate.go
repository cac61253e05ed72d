// Package domain defines the core business entities for the flat ledger.
// These models are independent of external services and represent the
// canonical data structures used throughout the service.
package domain

import "time"

// ============================================================
// Flatmates
// ============================================================

// Role controls what a flatmate may administer.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Flatmate represents a household member tracked for shared-finance billing.
// The three matching rule fields are all optional; a flatmate with none
// configured is never auto-matched.
type Flatmate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`

	// Matching rules
	BankAccountPattern string `json:"bank_account_pattern,omitempty"`
	CardSuffix         string `json:"card_suffix,omitempty"`
	MatchingName       string `json:"matching_name,omitempty"`
}

// HasMatchRules reports whether at least one matching rule is configured.
func (f *Flatmate) HasMatchRules() bool {
	return f.BankAccountPattern != "" || f.CardSuffix != "" || f.MatchingName != ""
}

// IsAdmin reports whether the flatmate may manage other flatmates.
func (f *Flatmate) IsAdmin() bool {
	return f.Role == RoleAdmin
}

// MatchRuleUpdate carries a partial update to a flatmate's matching rules.
// Nil fields are left untouched; empty strings clear the rule.
type MatchRuleUpdate struct {
	BankAccountPattern *string `json:"bank_account_pattern,omitempty"`
	CardSuffix         *string `json:"card_suffix,omitempty"`
	MatchingName       *string `json:"matching_name,omitempty"`
}
