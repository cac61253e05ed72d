package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/cache"
	"github.com/jbaxter/flatledger/internal/infra/observability"
)

func testFlatmates() []domain.Flatmate {
	return []domain.Flatmate{
		{ID: "fm-1", Name: "Alice", Active: true, BankAccountPattern: "NL01ALICE"},
		{ID: "fm-2", Name: "Bob", Active: true, MatchingName: "bob"},
	}
}

func newSyncService(store *mockStore, feed *mockFeed) *SyncService {
	return NewSyncService(
		feed,
		store,
		cache.New[time.Time](time.Hour),
		time.Minute,
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func TestSync_FetchStoreMatch(t *testing.T) {
	store := &mockStore{flatmates: testFlatmates()}
	feed := &mockFeed{transactions: []domain.Transaction{
		{
			ExternalID:          "ext-1",
			Date:                time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Amount:              decimal.NewFromInt(200),
			Description:         "weekly rent",
			CounterpartyAccount: "NL01ALICE0123456789",
			MatchType:           domain.MatchNone,
		},
		{
			ExternalID:  "ext-2",
			Date:        time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(50),
			Description: "supermarket",
			MatchType:   domain.MatchNone,
		},
	}}

	status, err := newSyncService(store, feed).Sync(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if status.Fetched != 2 || status.Created != 2 {
		t.Errorf("expected fetched=2 created=2, got fetched=%d created=%d", status.Fetched, status.Created)
	}
	if status.Matched != 1 || status.Unmatched != 1 {
		t.Errorf("expected matched=1 unmatched=1, got matched=%d unmatched=%d", status.Matched, status.Unmatched)
	}
	if status.LastSyncAt == nil {
		t.Error("expected LastSyncAt to be set")
	}

	rent, err := store.GetTransaction(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("expected stored transaction, got %v", err)
	}
	if rent.MatchedUserID != "fm-1" || rent.MatchType != domain.MatchAccount {
		t.Errorf("expected account match to fm-1, got %s/%s", rent.MatchedUserID, rent.MatchType)
	}
	if rent.MatchConfidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %f", rent.MatchConfidence)
	}
}

func TestSync_RateLimited(t *testing.T) {
	store := &mockStore{flatmates: testFlatmates()}
	svc := newSyncService(store, &mockFeed{})

	if _, err := svc.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: expected no error, got %v", err)
	}

	_, err := svc.Sync(context.Background())
	var rateLimited *domain.ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSync_UpsertIdempotent(t *testing.T) {
	store := &mockStore{flatmates: testFlatmates()}
	feed := &mockFeed{transactions: []domain.Transaction{
		{ExternalID: "ext-1", Amount: decimal.NewFromInt(200), Description: "rent bob"},
	}}

	// Separate services share the store, so only the upsert deduplicates.
	first, err := newSyncService(store, feed).Sync(context.Background())
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := newSyncService(store, feed).Sync(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if first.Created != 1 {
		t.Errorf("expected first sync to create 1, got %d", first.Created)
	}
	if second.Created != 0 {
		t.Errorf("expected second sync to create 0, got %d", second.Created)
	}
	if len(store.transactions) != 1 {
		t.Errorf("expected 1 stored transaction, got %d", len(store.transactions))
	}
}

func TestSync_FeedError(t *testing.T) {
	store := &mockStore{flatmates: testFlatmates()}
	feed := &mockFeed{err: errors.New("connection refused")}

	_, err := newSyncService(store, feed).Sync(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if store.syncStatus != nil {
		t.Error("expected sync status to stay unsaved after a failed run")
	}
}

func TestRematch_PicksUpRuleChanges(t *testing.T) {
	// Originally matched to Bob by name; Alice's new account rule outranks it.
	store := &mockStore{
		flatmates: testFlatmates(),
		transactions: []domain.Transaction{{
			ID:                  "tx-1",
			ExternalID:          "ext-1",
			Amount:              decimal.NewFromInt(200),
			Description:         "transfer from bob",
			CounterpartyAccount: "NL01ALICE0123456789",
			MatchedUserID:       "fm-2",
			MatchType:           domain.MatchName,
			MatchConfidence:     0.5,
		}},
	}

	changed, err := newSyncService(store, &mockFeed{}).Rematch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 changed transaction, got %d", changed)
	}

	tx := store.transactions[0]
	if tx.MatchedUserID != "fm-1" || tx.MatchType != domain.MatchAccount {
		t.Errorf("expected reassignment to fm-1/account, got %s/%s", tx.MatchedUserID, tx.MatchType)
	}
}

func TestRematch_PreservesManualMatch(t *testing.T) {
	// Manually pinned to Bob even though Alice's account rule would hit.
	store := &mockStore{
		flatmates: testFlatmates(),
		transactions: []domain.Transaction{{
			ID:                  "tx-1",
			ExternalID:          "ext-1",
			Amount:              decimal.NewFromInt(200),
			CounterpartyAccount: "NL01ALICE0123456789",
			MatchedUserID:       "fm-2",
			MatchType:           domain.MatchManual,
			MatchConfidence:     1.0,
			ManualMatch:         true,
		}},
	}

	changed, err := newSyncService(store, &mockFeed{}).Rematch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if changed != 0 {
		t.Errorf("expected 0 changed transactions, got %d", changed)
	}

	tx := store.transactions[0]
	if tx.MatchedUserID != "fm-2" || !tx.ManualMatch {
		t.Errorf("manual match was overwritten: %s/%s", tx.MatchedUserID, tx.MatchType)
	}
}
