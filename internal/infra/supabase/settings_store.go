package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
)

// supabaseSyncStatus maps the single-row sync_status table. The fixed id
// makes the save an upsert.
type supabaseSyncStatus struct {
	ID         int     `json:"id"`
	LastSyncAt *string `json:"last_sync_at,omitempty"`
	Fetched    int     `json:"fetched"`
	Created    int     `json:"created"`
	Matched    int     `json:"matched"`
	Unmatched  int     `json:"unmatched"`
}

const syncStatusRowID = 1

// GetSyncStatus fetches the outcome of the last bank feed sync. A missing
// row means no sync has run yet and is returned as an empty status.
func (c *Client) GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSyncStatus")
	defer span.End()

	status := &domain.SyncStatus{}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("sync_status?id=eq.%d&limit=1", syncStatusRowID)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return nil
			}

			var rows []supabaseSyncStatus
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode sync status: %w", err)
			}
			if len(rows) == 0 {
				return nil
			}

			r := rows[0]
			status.Fetched = r.Fetched
			status.Created = r.Created
			status.Matched = r.Matched
			status.Unmatched = r.Unmatched
			if r.LastSyncAt != nil {
				if t, err := time.Parse(time.RFC3339, *r.LastSyncAt); err == nil {
					status.LastSyncAt = &t
				}
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/sync_status", Err: err}
	}

	return status, nil
}

// SaveSyncStatus upserts the sync bookkeeping row.
func (c *Client) SaveSyncStatus(ctx context.Context, status *domain.SyncStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveSyncStatus")
	defer span.End()

	row := supabaseSyncStatus{
		ID:        syncStatusRowID,
		Fetched:   status.Fetched,
		Created:   status.Created,
		Matched:   status.Matched,
		Unmatched: status.Unmatched,
	}
	if status.LastSyncAt != nil {
		ts := status.LastSyncAt.Format(time.RFC3339)
		row.LastSyncAt = &ts
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, err := c.doPost(ctx, "sync_status?on_conflict=id", row,
				"resolution=merge-duplicates,return=minimal")
			return err
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/sync_status", Err: err}
	}

	return nil
}
