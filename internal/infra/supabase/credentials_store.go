package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
)

// supabaseCredential maps the credentials table. The password hash never
// leaves the auth service.
type supabaseCredential struct {
	FlatmateID   string `json:"flatmate_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
}

// GetCredentialByEmail looks up login credentials for the auth service.
func (c *Client) GetCredentialByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredentialByEmail")
	defer span.End()

	var credential *domain.Credential

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("credentials?email=eq.%s&limit=1", url.QueryEscape(email))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "credential", ID: email}
			}

			var rows []supabaseCredential
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode credential: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "credential", ID: email}
			}

			r := rows[0]
			credential = &domain.Credential{
				FlatmateID:   r.FlatmateID,
				Email:        r.Email,
				PasswordHash: r.PasswordHash,
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/credentials", Err: err}
	}

	return credential, nil
}
