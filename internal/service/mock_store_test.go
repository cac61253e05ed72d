package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
)

// mockStore is an in-memory port.LedgerStore for service tests.
type mockStore struct {
	flatmates    []domain.Flatmate
	transactions []domain.Transaction
	segments     []domain.ScheduleSegment
	syncStatus   *domain.SyncStatus
	err          error
}

func (m *mockStore) ListFlatmates(_ context.Context, includeInactive bool) ([]domain.Flatmate, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Flatmate
	for _, f := range m.flatmates {
		if f.Active || includeInactive {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockStore) GetFlatmate(_ context.Context, flatmateID string) (*domain.Flatmate, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.flatmates {
		if m.flatmates[i].ID == flatmateID {
			f := m.flatmates[i]
			return &f, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
}

func (m *mockStore) CreateFlatmate(_ context.Context, flatmate *domain.Flatmate) (*domain.Flatmate, error) {
	if m.err != nil {
		return nil, m.err
	}
	f := *flatmate
	f.ID = fmt.Sprintf("fm-%d", len(m.flatmates)+1)
	f.CreatedAt = time.Now()
	m.flatmates = append(m.flatmates, f)
	return &f, nil
}

func (m *mockStore) UpdateMatchRules(_ context.Context, flatmateID string, update *domain.MatchRuleUpdate) (*domain.Flatmate, error) {
	for i := range m.flatmates {
		if m.flatmates[i].ID != flatmateID {
			continue
		}
		if update.BankAccountPattern != nil {
			m.flatmates[i].BankAccountPattern = *update.BankAccountPattern
		}
		if update.CardSuffix != nil {
			m.flatmates[i].CardSuffix = *update.CardSuffix
		}
		if update.MatchingName != nil {
			m.flatmates[i].MatchingName = *update.MatchingName
		}
		f := m.flatmates[i]
		return &f, nil
	}
	return nil, &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
}

func (m *mockStore) DeactivateFlatmate(_ context.Context, flatmateID string) error {
	for i := range m.flatmates {
		if m.flatmates[i].ID == flatmateID {
			m.flatmates[i].Active = false
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
}

func (m *mockStore) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Transaction
	for _, t := range m.transactions {
		if filter.MatchedUserID != "" && t.MatchedUserID != filter.MatchedUserID {
			continue
		}
		if filter.UnmatchedOnly && t.MatchedUserID != "" {
			continue
		}
		if filter.Since != nil && t.Date.Before(*filter.Since) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) GetTransaction(_ context.Context, transactionID string) (*domain.Transaction, error) {
	for i := range m.transactions {
		if m.transactions[i].ID == transactionID {
			t := m.transactions[i]
			return &t, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
}

func (m *mockStore) UpsertTransactions(_ context.Context, transactions []domain.Transaction) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	existing := make(map[string]bool, len(m.transactions))
	for _, t := range m.transactions {
		existing[t.ExternalID] = true
	}
	created := 0
	for _, t := range transactions {
		if existing[t.ExternalID] {
			continue
		}
		t.ID = fmt.Sprintf("tx-%d", len(m.transactions)+1)
		m.transactions = append(m.transactions, t)
		existing[t.ExternalID] = true
		created++
	}
	return created, nil
}

func (m *mockStore) UpdateTransactionMatch(_ context.Context, transactionID string, matchedUserID string, matchType domain.MatchType, confidence float64) error {
	for i := range m.transactions {
		if m.transactions[i].ID != transactionID {
			continue
		}
		// Same guard as the real store: manual matches are immutable here.
		if m.transactions[i].ManualMatch {
			return nil
		}
		m.transactions[i].MatchedUserID = matchedUserID
		m.transactions[i].MatchType = matchType
		m.transactions[i].MatchConfidence = confidence
		return nil
	}
	return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
}

func (m *mockStore) SetManualMatch(_ context.Context, transactionID, flatmateID string) error {
	for i := range m.transactions {
		if m.transactions[i].ID == transactionID {
			m.transactions[i].MatchedUserID = flatmateID
			m.transactions[i].MatchType = domain.MatchManual
			m.transactions[i].MatchConfidence = 1.0
			m.transactions[i].ManualMatch = true
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
}

func (m *mockStore) ClearManualMatch(_ context.Context, transactionID string) error {
	for i := range m.transactions {
		if m.transactions[i].ID == transactionID {
			m.transactions[i].MatchedUserID = ""
			m.transactions[i].MatchType = domain.MatchNone
			m.transactions[i].MatchConfidence = 0
			m.transactions[i].ManualMatch = false
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
}

func (m *mockStore) ListScheduleSegments(_ context.Context, flatmateID string) ([]domain.ScheduleSegment, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.ScheduleSegment
	for _, s := range m.segments {
		if s.FlatmateID == flatmateID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) CreateScheduleSegment(_ context.Context, segment *domain.ScheduleSegment) (*domain.ScheduleSegment, error) {
	s := *segment
	s.ID = fmt.Sprintf("seg-%d", len(m.segments)+1)
	m.segments = append(m.segments, s)
	return &s, nil
}

func (m *mockStore) CloseScheduleSegment(_ context.Context, flatmateID, segmentID string, endDate time.Time) error {
	for i := range m.segments {
		if m.segments[i].ID == segmentID && m.segments[i].FlatmateID == flatmateID {
			end := endDate
			m.segments[i].EndDate = &end
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "schedule_segment", ID: segmentID}
}

func (m *mockStore) DeleteScheduleSegment(_ context.Context, flatmateID, segmentID string) error {
	for i := range m.segments {
		if m.segments[i].ID == segmentID && m.segments[i].FlatmateID == flatmateID {
			m.segments = append(m.segments[:i], m.segments[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "schedule_segment", ID: segmentID}
}

func (m *mockStore) GetSyncStatus(_ context.Context) (*domain.SyncStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.syncStatus == nil {
		return &domain.SyncStatus{}, nil
	}
	s := *m.syncStatus
	return &s, nil
}

func (m *mockStore) SaveSyncStatus(_ context.Context, status *domain.SyncStatus) error {
	s := *status
	m.syncStatus = &s
	return nil
}

// mockFeed is a canned port.BankFeed.
type mockFeed struct {
	transactions []domain.Transaction
	err          error
}

func (m *mockFeed) FetchTransactions(_ context.Context, _ time.Time) ([]domain.Transaction, error) {
	return m.transactions, m.err
}
