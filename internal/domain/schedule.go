package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Payment schedule
// ============================================================

// ScheduleSegment is a date range over which a flatmate owes a fixed weekly
// amount. EndDate == nil means the segment is open-ended. Coverage is
// half-open: [StartDate, EndDate).
type ScheduleSegment struct {
	ID           string          `json:"id"`
	FlatmateID   string          `json:"flatmate_id"`
	WeeklyAmount decimal.Decimal `json:"weekly_amount"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
}

// NewScheduleSegment validates and constructs a segment. A malformed range
// (end before or equal to start) or a negative amount is a configuration
// error and is rejected here, before any computation sees the segment.
func NewScheduleSegment(flatmateID string, weeklyAmount decimal.Decimal, start time.Time, end *time.Time) (*ScheduleSegment, error) {
	if flatmateID == "" {
		return nil, &ErrValidation{Field: "flatmate_id", Message: "required"}
	}
	if weeklyAmount.IsNegative() {
		return nil, &ErrValidation{Field: "weekly_amount", Message: "must not be negative"}
	}
	if start.IsZero() {
		return nil, &ErrValidation{Field: "start_date", Message: "required"}
	}
	if end != nil && !end.After(start) {
		return nil, &ErrValidation{Field: "end_date", Message: "must be after start_date"}
	}
	return &ScheduleSegment{
		FlatmateID:   flatmateID,
		WeeklyAmount: weeklyAmount,
		StartDate:    start,
		EndDate:      end,
	}, nil
}

// Covers reports whether the segment is in force on the given date.
func (s *ScheduleSegment) Covers(date time.Time) bool {
	if date.Before(s.StartDate) {
		return false
	}
	return s.EndDate == nil || date.Before(*s.EndDate)
}

// Open reports whether the segment has no end date.
func (s *ScheduleSegment) Open() bool {
	return s.EndDate == nil
}

// Overlaps reports whether two segments' ranges intersect. Used when a new
// segment is added to a flatmate's schedule; segments actually in force must
// never overlap.
func (s *ScheduleSegment) Overlaps(other *ScheduleSegment) bool {
	if s.EndDate != nil && !other.StartDate.Before(*s.EndDate) {
		return false
	}
	if other.EndDate != nil && !s.StartDate.Before(*other.EndDate) {
		return false
	}
	return true
}
