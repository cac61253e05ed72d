package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/engine"
)

func flatmates() []domain.Flatmate {
	return []domain.Flatmate{
		{
			ID:                 "fm-alice",
			Name:               "Alice",
			Active:             true,
			BankAccountPattern: "12-3456-7890123-00",
			CardSuffix:         "4321",
		},
		{
			ID:           "fm-bob",
			Name:         "Bob",
			Active:       true,
			MatchingName: "bob smith",
		},
	}
}

func TestMatch_AccountOutranksName(t *testing.T) {
	tx := domain.Transaction{
		CounterpartyAccount: "12-3456-7890123-00",
		Description:         "Rent from Bob Smith",
		Amount:              decimal.NewFromInt(200),
	}

	res := engine.Match(&tx, flatmates())
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.FlatmateID != "fm-alice" {
		t.Errorf("expected account match to win, got %s", res.FlatmateID)
	}
	if res.Type != domain.MatchAccount {
		t.Errorf("expected match type account, got %s", res.Type)
	}
	if res.Confidence != engine.ConfidenceAccount {
		t.Errorf("expected confidence %v, got %v", engine.ConfidenceAccount, res.Confidence)
	}
}

func TestMatch_AccountPatternSubstring(t *testing.T) {
	tx := domain.Transaction{CounterpartyAccount: "XX 12-3456-7890123-00 YY"}

	res := engine.Match(&tx, flatmates())
	if res == nil || res.FlatmateID != "fm-alice" {
		t.Fatalf("expected substring account match, got %+v", res)
	}
}

func TestMatch_CardSuffix(t *testing.T) {
	tx := domain.Transaction{CardSuffix: "4321", Description: "COUNTDOWN AUCKLAND"}

	res := engine.Match(&tx, flatmates())
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Type != domain.MatchCard {
		t.Errorf("expected card match, got %s", res.Type)
	}
	if res.Confidence != engine.ConfidenceCard {
		t.Errorf("expected confidence %v, got %v", engine.ConfidenceCard, res.Confidence)
	}
}

func TestMatch_NameCaseInsensitive(t *testing.T) {
	tx := domain.Transaction{Description: "TRANSFER FROM BOB SMITH"}

	res := engine.Match(&tx, flatmates())
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.FlatmateID != "fm-bob" || res.Type != domain.MatchName {
		t.Errorf("expected name match for fm-bob, got %+v", res)
	}
}

func TestMatch_TieBreakLowestID(t *testing.T) {
	fms := []domain.Flatmate{
		{ID: "fm-b", Active: true, MatchingName: "flat rent"},
		{ID: "fm-a", Active: true, MatchingName: "rent"},
	}
	tx := domain.Transaction{Description: "flat rent week 12"}

	res := engine.Match(&tx, fms)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.FlatmateID != "fm-a" {
		t.Errorf("expected deterministic tie-break to fm-a, got %s", res.FlatmateID)
	}
}

func TestMatch_NoRulesNeverMatches(t *testing.T) {
	fms := []domain.Flatmate{{ID: "fm-x", Active: true, Name: "Xavier"}}
	tx := domain.Transaction{Description: "Xavier rent", CounterpartyAccount: "00-1111-2222333-00"}

	if res := engine.Match(&tx, fms); res != nil {
		t.Errorf("flatmate with zero rules must never auto-match, got %+v", res)
	}
}

func TestMatch_InactiveSkipped(t *testing.T) {
	fms := flatmates()
	fms[0].Active = false
	tx := domain.Transaction{CounterpartyAccount: "12-3456-7890123-00"}

	if res := engine.Match(&tx, fms); res != nil {
		t.Errorf("inactive flatmate must not match, got %+v", res)
	}
}

func TestMatch_ManualSkipped(t *testing.T) {
	tx := domain.Transaction{
		CounterpartyAccount: "12-3456-7890123-00",
		ManualMatch:         true,
		MatchedUserID:       "fm-bob",
		MatchType:           domain.MatchManual,
		MatchConfidence:     1,
	}

	if res := engine.Match(&tx, flatmates()); res != nil {
		t.Fatalf("manual match must be skipped, got %+v", res)
	}

	engine.ApplyMatch(&tx, nil)
	if tx.MatchedUserID != "fm-bob" || tx.MatchType != domain.MatchManual {
		t.Error("manual match fields must never be reverted")
	}
}

func TestMatch_Idempotent(t *testing.T) {
	tx := domain.Transaction{CounterpartyAccount: "12-3456-7890123-00"}
	fms := flatmates()

	first := engine.Match(&tx, fms)
	engine.ApplyMatch(&tx, first)

	second := engine.Match(&tx, fms)
	engine.ApplyMatch(&tx, second)

	if *first != *second {
		t.Errorf("re-running the matcher changed the result: %+v vs %+v", first, second)
	}
	if tx.MatchedUserID != first.FlatmateID {
		t.Errorf("expected matched user %s, got %s", first.FlatmateID, tx.MatchedUserID)
	}
}

func TestApplyMatch_Unmatched(t *testing.T) {
	tx := domain.Transaction{
		MatchedUserID:   "fm-old",
		MatchType:       domain.MatchName,
		MatchConfidence: 0.5,
	}

	engine.ApplyMatch(&tx, nil)

	if tx.MatchedUserID != "" || tx.MatchType != domain.MatchNone || tx.MatchConfidence != 0 {
		t.Errorf("expected cleared match fields, got %+v", tx)
	}
}
