package engine

import (
	"strings"

	"github.com/jbaxter/flatledger/internal/domain"
)

// Confidence scores per rule tier. Account details are near-certain, card
// suffixes collide rarely, name substrings are only a hint.
const (
	ConfidenceAccount = 1.0
	ConfidenceCard    = 0.8
	ConfidenceName    = 0.5
)

// MatchResult is the matcher's verdict for one transaction.
type MatchResult struct {
	FlatmateID string
	Type       domain.MatchType
	Confidence float64
}

// matchRule is one predicate+score evaluator in the ordered chain. Rules are
// tried tier by tier; the first tier with any hit wins.
type matchRule struct {
	matchType  domain.MatchType
	confidence float64
	applies    func(tx *domain.Transaction, fm *domain.Flatmate) bool
}

var matchRules = []matchRule{
	{domain.MatchAccount, ConfidenceAccount, matchesAccount},
	{domain.MatchCard, ConfidenceCard, matchesCard},
	{domain.MatchName, ConfidenceName, matchesName},
}

// Match decides which flatmate a transaction belongs to, or nil if no rule
// matches. Precedence is account > card > name. If several flatmates match
// within the same tier the lowest flatmate id wins, so re-running the matcher
// against an unchanged flatmate list always reproduces the same result.
//
// Transactions flagged as manual overrides are never reprocessed.
func Match(tx *domain.Transaction, flatmates []domain.Flatmate) *MatchResult {
	if tx.ManualMatch {
		return nil
	}

	for _, rule := range matchRules {
		var best *domain.Flatmate
		for i := range flatmates {
			fm := &flatmates[i]
			if !fm.Active || !fm.HasMatchRules() {
				continue
			}
			if !rule.applies(tx, fm) {
				continue
			}
			if best == nil || fm.ID < best.ID {
				best = fm
			}
		}
		if best != nil {
			return &MatchResult{
				FlatmateID: best.ID,
				Type:       rule.matchType,
				Confidence: rule.confidence,
			}
		}
	}

	return nil
}

// ApplyMatch writes a match result back onto the transaction. A nil result
// marks it unmatched. Manual matches are left untouched, so applying is
// idempotent across re-syncs.
func ApplyMatch(tx *domain.Transaction, res *MatchResult) {
	if tx.ManualMatch {
		return
	}
	if res == nil {
		tx.MatchedUserID = ""
		tx.MatchType = domain.MatchNone
		tx.MatchConfidence = 0
		return
	}
	tx.MatchedUserID = res.FlatmateID
	tx.MatchType = res.Type
	tx.MatchConfidence = res.Confidence
}

func matchesAccount(tx *domain.Transaction, fm *domain.Flatmate) bool {
	if tx.CounterpartyAccount == "" || fm.BankAccountPattern == "" {
		return false
	}
	return strings.Contains(tx.CounterpartyAccount, fm.BankAccountPattern)
}

func matchesCard(tx *domain.Transaction, fm *domain.Flatmate) bool {
	if len(fm.CardSuffix) != 4 || tx.CardSuffix == "" {
		return false
	}
	return tx.CardSuffix == fm.CardSuffix
}

func matchesName(tx *domain.Transaction, fm *domain.Flatmate) bool {
	if tx.Description == "" || fm.MatchingName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(tx.Description), strings.ToLower(fm.MatchingName))
}
