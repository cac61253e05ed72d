// Package client implements HTTP clients for external APIs.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// BankFeedClient fetches transactions from the bank-aggregation API.
type BankFeedClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewBankFeedClient creates a new BankFeedClient.
func NewBankFeedClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *BankFeedClient {
	return &BankFeedClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
	}
}

// feedTransaction maps the aggregator's wire format. The raw item is kept
// verbatim on the domain transaction for audit.
type feedTransaction struct {
	ID          string          `json:"_id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
	Category    string          `json:"category,omitempty"`
	Meta        struct {
		CardSuffix   string `json:"card_suffix,omitempty"`
		OtherAccount string `json:"other_account,omitempty"`
	} `json:"meta"`
}

type feedPage struct {
	Items []json.RawMessage `json:"items"`
}

// FetchTransactions pulls transactions dated on or after since, with retry,
// circuit breaker, and tracing.
func (c *BankFeedClient) FetchTransactions(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "BankFeedClient.FetchTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("since", since.Format("2006-01-02")))

	var transactions []domain.Transaction

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/transactions?since=%s", c.baseURL, since.Format("2006-01-02"))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+c.token)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("bank feed returned status %d", resp.StatusCode)
			}

			var page feedPage
			if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
				return fmt.Errorf("failed to decode feed page: %w", err)
			}

			transactions = make([]domain.Transaction, 0, len(page.Items))
			for _, raw := range page.Items {
				var item feedTransaction
				if err := json.Unmarshal(raw, &item); err != nil {
					return fmt.Errorf("failed to decode feed item: %w", err)
				}

				date, err := time.Parse(time.RFC3339, item.Date)
				if err != nil {
					date, err = time.Parse("2006-01-02", item.Date)
					if err != nil {
						return fmt.Errorf("feed item %s: unparseable date %q", item.ID, item.Date)
					}
				}

				transactions = append(transactions, domain.Transaction{
					ExternalID:          item.ID,
					Date:                date,
					Amount:              item.Amount,
					Description:         item.Description,
					Merchant:            item.Merchant,
					Category:            item.Category,
					CardSuffix:          item.Meta.CardSuffix,
					CounterpartyAccount: item.Meta.OtherAccount,
					RawPayload:          raw,
					MatchType:           domain.MatchNone,
				})
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return transactions, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "bankfeed", Err: err}
	}

	return result.([]domain.Transaction), nil
}
