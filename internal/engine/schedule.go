package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
)

// Schedule resolution: a flatmate's schedule is an ordered, non-overlapping
// list of segments; the amount due for a week is taken from the segment in
// force on that week's due date.

// AmountDueForWeek returns the weekly amount owed for the week anchored at
// dueDate, or zero when no segment covers the date. A flatmate with no
// segments at all owes nothing every week; that is a data anomaly for the
// balance to surface, not an error.
func AmountDueForWeek(segments []domain.ScheduleSegment, dueDate time.Time) decimal.Decimal {
	for i := range segments {
		if segments[i].Covers(dueDate) {
			return segments[i].WeeklyAmount
		}
	}
	return decimal.Zero
}

// CurrentSegment returns the segment in force today, or nil.
func CurrentSegment(segments []domain.ScheduleSegment, today time.Time) *domain.ScheduleSegment {
	for i := range segments {
		if segments[i].Covers(truncateToDay(today)) {
			return &segments[i]
		}
	}
	return nil
}

// FutureSegments returns segments starting after today, in chronological
// order.
func FutureSegments(segments []domain.ScheduleSegment, today time.Time) []domain.ScheduleSegment {
	day := truncateToDay(today)
	var future []domain.ScheduleSegment
	for i := range segments {
		if segments[i].StartDate.After(day) {
			future = append(future, segments[i])
		}
	}
	SortSegments(future)
	return future
}

// EarliestStart returns the earliest segment start date, or nil when the
// flatmate has no schedule at all. Used as the analysis-start fallback.
func EarliestStart(segments []domain.ScheduleSegment) *time.Time {
	var earliest *time.Time
	for i := range segments {
		s := segments[i].StartDate
		if earliest == nil || s.Before(*earliest) {
			earliest = &s
		}
	}
	return earliest
}

// SortSegments orders segments by start date in place.
func SortSegments(segments []domain.ScheduleSegment) {
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartDate.Before(segments[j].StartDate)
	})
}
