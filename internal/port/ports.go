// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
)

// BankFeed pulls transactions from the external bank-aggregation API.
type BankFeed interface {
	FetchTransactions(ctx context.Context, since time.Time) ([]domain.Transaction, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore defines all data operations for the flat ledger.
// Implemented by the Supabase adapter (or any other persistence layer).
type LedgerStore interface {
	// Flatmates
	ListFlatmates(ctx context.Context, includeInactive bool) ([]domain.Flatmate, error)
	GetFlatmate(ctx context.Context, flatmateID string) (*domain.Flatmate, error)
	CreateFlatmate(ctx context.Context, flatmate *domain.Flatmate) (*domain.Flatmate, error)
	UpdateMatchRules(ctx context.Context, flatmateID string, update *domain.MatchRuleUpdate) (*domain.Flatmate, error)
	DeactivateFlatmate(ctx context.Context, flatmateID string) error

	// Transactions
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	UpsertTransactions(ctx context.Context, transactions []domain.Transaction) (created int, err error)
	UpdateTransactionMatch(ctx context.Context, transactionID string, matchedUserID string, matchType domain.MatchType, confidence float64) error
	SetManualMatch(ctx context.Context, transactionID, flatmateID string) error
	ClearManualMatch(ctx context.Context, transactionID string) error

	// Payment schedule
	ListScheduleSegments(ctx context.Context, flatmateID string) ([]domain.ScheduleSegment, error)
	CreateScheduleSegment(ctx context.Context, segment *domain.ScheduleSegment) (*domain.ScheduleSegment, error)
	CloseScheduleSegment(ctx context.Context, flatmateID, segmentID string, endDate time.Time) error
	DeleteScheduleSegment(ctx context.Context, flatmateID, segmentID string) error

	// Sync bookkeeping
	GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error)
	SaveSyncStatus(ctx context.Context, status *domain.SyncStatus) error
}

// CredentialStore looks up login credentials for the auth service.
type CredentialStore interface {
	GetCredentialByEmail(ctx context.Context, email string) (*domain.Credential, error)
}
