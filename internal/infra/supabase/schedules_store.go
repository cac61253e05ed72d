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

// supabaseSegment maps the schedule_segments table columns. Dates are
// stored as plain dates; coverage semantics live in the domain type.
type supabaseSegment struct {
	ID           string          `json:"id,omitempty"`
	FlatmateID   string          `json:"flatmate_id"`
	WeeklyAmount decimal.Decimal `json:"weekly_amount"`
	StartDate    string          `json:"start_date"`
	EndDate      *string         `json:"end_date,omitempty"`
}

func (r supabaseSegment) toDomain() domain.ScheduleSegment {
	start, _ := time.Parse("2006-01-02", r.StartDate)
	var end *time.Time
	if r.EndDate != nil {
		if e, err := time.Parse("2006-01-02", *r.EndDate); err == nil {
			end = &e
		}
	}
	return domain.ScheduleSegment{
		ID:           r.ID,
		FlatmateID:   r.FlatmateID,
		WeeklyAmount: r.WeeklyAmount,
		StartDate:    start,
		EndDate:      end,
	}
}

// ListScheduleSegments fetches a flatmate's schedule, oldest first.
func (c *Client) ListScheduleSegments(ctx context.Context, flatmateID string) ([]domain.ScheduleSegment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListScheduleSegments")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	var segments []domain.ScheduleSegment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("schedule_segments?flatmate_id=eq.%s&order=start_date.asc", url.QueryEscape(flatmateID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				segments = []domain.ScheduleSegment{}
				return nil
			}

			var rows []supabaseSegment
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode schedule segments: %w", err)
			}

			segments = make([]domain.ScheduleSegment, 0, len(rows))
			for _, r := range rows {
				segments = append(segments, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/schedule", Err: err}
	}

	return segments, nil
}

// CreateScheduleSegment inserts a validated segment and returns the stored
// record. Overlap checks happen in the service layer before this call.
func (c *Client) CreateScheduleSegment(ctx context.Context, segment *domain.ScheduleSegment) (*domain.ScheduleSegment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateScheduleSegment")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", segment.FlatmateID))

	row := supabaseSegment{
		FlatmateID:   segment.FlatmateID,
		WeeklyAmount: segment.WeeklyAmount,
		StartDate:    segment.StartDate.Format("2006-01-02"),
	}
	if segment.EndDate != nil {
		end := segment.EndDate.Format("2006-01-02")
		row.EndDate = &end
	}

	var created *domain.ScheduleSegment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "schedule_segments", row, "")
			if err != nil {
				return err
			}

			var rows []supabaseSegment
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created segment: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("segment insert returned no rows")
			}

			s := rows[0].toDomain()
			created = &s
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/schedule", Err: err}
	}

	return created, nil
}

// DeleteScheduleSegment removes a segment outright. Only used for segments
// that have not started yet; anything already in force is closed instead.
func (c *Client) DeleteScheduleSegment(ctx context.Context, flatmateID, segmentID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteScheduleSegment")
	defer span.End()
	span.SetAttributes(
		attribute.String("flatmate.id", flatmateID),
		attribute.String("segment.id", segmentID),
	)

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("schedule_segments?id=eq.%s&flatmate_id=eq.%s",
				url.QueryEscape(segmentID), url.QueryEscape(flatmateID))
			return c.doDelete(ctx, path)
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/schedule", Err: err}
	}

	return nil
}

// CloseScheduleSegment sets an end date on an open segment. The flatmate
// filter keeps one flatmate's request from closing another's segment.
func (c *Client) CloseScheduleSegment(ctx context.Context, flatmateID, segmentID string, endDate time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.CloseScheduleSegment")
	defer span.End()
	span.SetAttributes(
		attribute.String("flatmate.id", flatmateID),
		attribute.String("segment.id", segmentID),
	)

	data := map[string]any{
		"end_date": endDate.Format("2006-01-02"),
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("schedule_segments?id=eq.%s&flatmate_id=eq.%s",
				url.QueryEscape(segmentID), url.QueryEscape(flatmateID))
			body, err := c.doPatch(ctx, path, data)
			if err != nil {
				return err
			}
			if string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "schedule_segment", ID: segmentID}
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return notFound
		}
		return &domain.ErrExternalService{Service: "supabase/schedule", Err: err}
	}

	return nil
}
