package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
)

// supabaseFlatmate maps the flatmates table columns to our domain.
type supabaseFlatmate struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	Active             bool   `json:"active"`
	CreatedAt          string `json:"created_at,omitempty"`
	BankAccountPattern string `json:"bank_account_pattern,omitempty"`
	CardSuffix         string `json:"card_suffix,omitempty"`
	MatchingName       string `json:"matching_name,omitempty"`
}

func (r supabaseFlatmate) toDomain() domain.Flatmate {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Flatmate{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Role:               domain.Role(r.Role),
		Active:             r.Active,
		CreatedAt:          createdAt,
		BankAccountPattern: r.BankAccountPattern,
		CardSuffix:         r.CardSuffix,
		MatchingName:       r.MatchingName,
	}
}

// ListFlatmates fetches flatmates, ordered by creation so matching
// tie-breaks stay stable.
func (c *Client) ListFlatmates(ctx context.Context, includeInactive bool) ([]domain.Flatmate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFlatmates")
	defer span.End()
	span.SetAttributes(attribute.Bool("include_inactive", includeInactive))

	var flatmates []domain.Flatmate

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "flatmates?order=id.asc"
			if !includeInactive {
				path += "&active=eq.true"
			}
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				flatmates = []domain.Flatmate{}
				return nil
			}

			var rows []supabaseFlatmate
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode flatmates: %w", err)
			}

			flatmates = make([]domain.Flatmate, 0, len(rows))
			for _, r := range rows {
				flatmates = append(flatmates, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/flatmates", Err: err}
	}

	return flatmates, nil
}

// GetFlatmate fetches a single flatmate by ID.
func (c *Client) GetFlatmate(ctx context.Context, flatmateID string) (*domain.Flatmate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFlatmate")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	var flatmate *domain.Flatmate

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("flatmates?id=eq.%s&limit=1", url.QueryEscape(flatmateID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
			}

			var rows []supabaseFlatmate
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode flatmate: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
			}

			f := rows[0].toDomain()
			flatmate = &f
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/flatmates", Err: err}
	}

	return flatmate, nil
}

// CreateFlatmate inserts a new flatmate and returns the stored record.
func (c *Client) CreateFlatmate(ctx context.Context, flatmate *domain.Flatmate) (*domain.Flatmate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateFlatmate")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.email", flatmate.Email))

	row := supabaseFlatmate{
		Name:               flatmate.Name,
		Email:              flatmate.Email,
		Role:               string(flatmate.Role),
		Active:             true,
		BankAccountPattern: flatmate.BankAccountPattern,
		CardSuffix:         flatmate.CardSuffix,
		MatchingName:       flatmate.MatchingName,
	}

	var created *domain.Flatmate

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "flatmates", row, "")
			if err != nil {
				return err
			}

			var rows []supabaseFlatmate
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created flatmate: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("flatmate insert returned no rows")
			}

			f := rows[0].toDomain()
			created = &f
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/flatmates", Err: err}
	}

	return created, nil
}

// UpdateMatchRules applies a partial update to a flatmate's matching rules.
// Nil fields are omitted from the PATCH body so they stay untouched.
func (c *Client) UpdateMatchRules(ctx context.Context, flatmateID string, update *domain.MatchRuleUpdate) (*domain.Flatmate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateMatchRules")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	data := map[string]any{}
	if update.BankAccountPattern != nil {
		data["bank_account_pattern"] = *update.BankAccountPattern
	}
	if update.CardSuffix != nil {
		data["card_suffix"] = *update.CardSuffix
	}
	if update.MatchingName != nil {
		data["matching_name"] = *update.MatchingName
	}
	if len(data) == 0 {
		return c.GetFlatmate(ctx, flatmateID)
	}

	var updated *domain.Flatmate

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("flatmates?id=eq.%s", url.QueryEscape(flatmateID))
			body, err := c.doPatch(ctx, path, data)
			if err != nil {
				return err
			}

			var rows []supabaseFlatmate
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode updated flatmate: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
			}

			f := rows[0].toDomain()
			updated = &f
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/flatmates", Err: err}
	}

	return updated, nil
}

// DeactivateFlatmate marks a flatmate inactive. Historical transactions and
// schedule segments keep referencing the record, so rows are never deleted.
func (c *Client) DeactivateFlatmate(ctx context.Context, flatmateID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeactivateFlatmate")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("flatmates?id=eq.%s", url.QueryEscape(flatmateID))
			body, err := c.doPatch(ctx, path, map[string]any{"active": false})
			if err != nil {
				return err
			}
			if string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "flatmate", ID: flatmateID}
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return notFound
		}
		return &domain.ErrExternalService{Service: "supabase/flatmates", Err: err}
	}

	return nil
}
