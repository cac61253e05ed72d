package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
)

// supabaseTransaction maps the transactions table columns.
type supabaseTransaction struct {
	ID                  string          `json:"id,omitempty"`
	ExternalID          string          `json:"external_id"`
	Date                string          `json:"date"`
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description"`
	Merchant            string          `json:"merchant,omitempty"`
	Category            string          `json:"category,omitempty"`
	CardSuffix          string          `json:"card_suffix,omitempty"`
	CounterpartyAccount string          `json:"counterparty_account,omitempty"`
	RawPayload          json.RawMessage `json:"raw_payload,omitempty"`
	MatchedUserID       *string         `json:"matched_user_id,omitempty"`
	MatchType           string          `json:"match_type"`
	MatchConfidence     float64         `json:"match_confidence"`
	ManualMatch         bool            `json:"manual_match"`
}

func (r supabaseTransaction) toDomain() domain.Transaction {
	date, _ := time.Parse(time.RFC3339, r.Date)
	if date.IsZero() {
		date, _ = time.Parse("2006-01-02", r.Date)
	}
	matchedUserID := ""
	if r.MatchedUserID != nil {
		matchedUserID = *r.MatchedUserID
	}
	return domain.Transaction{
		ID:                  r.ID,
		ExternalID:          r.ExternalID,
		Date:                date,
		Amount:              r.Amount,
		Description:         r.Description,
		Merchant:            r.Merchant,
		Category:            r.Category,
		CardSuffix:          r.CardSuffix,
		CounterpartyAccount: r.CounterpartyAccount,
		RawPayload:          r.RawPayload,
		MatchedUserID:       matchedUserID,
		MatchType:           domain.MatchType(r.MatchType),
		MatchConfidence:     r.MatchConfidence,
		ManualMatch:         r.ManualMatch,
	}
}

func fromDomainTransaction(t domain.Transaction) supabaseTransaction {
	row := supabaseTransaction{
		ExternalID:          t.ExternalID,
		Date:                t.Date.Format(time.RFC3339),
		Amount:              t.Amount,
		Description:         t.Description,
		Merchant:            t.Merchant,
		Category:            t.Category,
		CardSuffix:          t.CardSuffix,
		CounterpartyAccount: t.CounterpartyAccount,
		RawPayload:          t.RawPayload,
		MatchType:           string(t.MatchType),
		MatchConfidence:     t.MatchConfidence,
		ManualMatch:         t.ManualMatch,
	}
	if t.MatchedUserID != "" {
		row.MatchedUserID = &t.MatchedUserID
	}
	return row
}

// ListTransactions fetches transactions matching the filter, newest first.
func (c *Client) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()

	path := "transactions?order=date.desc"
	if filter.MatchedUserID != "" {
		path += "&matched_user_id=eq." + url.QueryEscape(filter.MatchedUserID)
	}
	if filter.UnmatchedOnly {
		path += "&matched_user_id=is.null"
	}
	if filter.Since != nil {
		path += "&date=gte." + filter.Since.Format("2006-01-02")
	}
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		path += fmt.Sprintf("&limit=%d&offset=%d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode transactions: %w", err)
			}

			transactions = make([]domain.Transaction, 0, len(rows))
			for _, r := range rows {
				transactions = append(transactions, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transactions, nil
}

// GetTransaction fetches a single transaction by ID.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	var transaction *domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?id=eq.%s&limit=1", url.QueryEscape(transactionID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode transaction: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
			}

			t := rows[0].toDomain()
			transaction = &t
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transaction, nil
}

// UpsertTransactions inserts synced transactions, keyed by external_id.
// Rows already present are left completely untouched, which is what keeps
// existing match state (manual matches included) safe across re-syncs.
// Returns the number of newly created rows.
func (c *Client) UpsertTransactions(ctx context.Context, transactions []domain.Transaction) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transaction.count", len(transactions)))

	if len(transactions) == 0 {
		return 0, nil
	}

	rows := make([]supabaseTransaction, 0, len(transactions))
	for _, t := range transactions {
		rows = append(rows, fromDomainTransaction(t))
	}

	created := 0

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "transactions?on_conflict=external_id", rows,
				"resolution=ignore-duplicates,return=representation")
			if err != nil {
				return err
			}

			var inserted []supabaseTransaction
			if err := json.Unmarshal(body, &inserted); err != nil {
				return fmt.Errorf("failed to decode upsert result: %w", err)
			}
			created = len(inserted)
			return nil
		})
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return created, nil
}

// UpdateTransactionMatch writes an automatic match result. The filter
// excludes manually matched rows, so a manual assignment can never be
// overwritten here even if a caller tries.
func (c *Client) UpdateTransactionMatch(ctx context.Context, transactionID string, matchedUserID string, matchType domain.MatchType, confidence float64) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransactionMatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.String("match.type", string(matchType)),
	)

	data := map[string]any{
		"match_type":       string(matchType),
		"match_confidence": confidence,
	}
	if matchedUserID != "" {
		data["matched_user_id"] = matchedUserID
	} else {
		data["matched_user_id"] = nil
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?id=eq.%s&manual_match=is.false", url.QueryEscape(transactionID))
			_, err := c.doPatch(ctx, path, data)
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return nil
}

// SetManualMatch assigns a flatmate by hand. Manual matches carry full
// confidence and are skipped by automatic re-matching.
func (c *Client) SetManualMatch(ctx context.Context, transactionID, flatmateID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetManualMatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.String("flatmate.id", flatmateID),
	)

	data := map[string]any{
		"matched_user_id":  flatmateID,
		"match_type":       string(domain.MatchManual),
		"match_confidence": 1.0,
		"manual_match":     true,
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?id=eq.%s", url.QueryEscape(transactionID))
			body, err := c.doPatch(ctx, path, data)
			if err != nil {
				return err
			}
			if string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return notFound
		}
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return nil
}

// ClearManualMatch removes a manual assignment, leaving the transaction
// unmatched until the next automatic pass.
func (c *Client) ClearManualMatch(ctx context.Context, transactionID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.ClearManualMatch")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	data := map[string]any{
		"matched_user_id":  nil,
		"match_type":       string(domain.MatchNone),
		"match_confidence": 0.0,
		"manual_match":     false,
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?id=eq.%s", url.QueryEscape(transactionID))
			body, err := c.doPatch(ctx, path, data)
			if err != nil {
				return err
			}
			if string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return notFound
		}
		return &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return nil
}
