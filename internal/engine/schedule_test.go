package engine_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/engine"
)

func segment(amount int64, start string, end string) domain.ScheduleSegment {
	seg := domain.ScheduleSegment{
		FlatmateID:   "fm-alice",
		WeeklyAmount: decimal.NewFromInt(amount),
		StartDate:    day(start),
	}
	if end != "" {
		e := day(end)
		seg.EndDate = &e
	}
	return seg
}

func TestAmountDueForWeek(t *testing.T) {
	segments := []domain.ScheduleSegment{
		segment(200, "2025-01-02", "2025-03-01"),
		segment(250, "2025-03-01", ""),
	}

	cases := []struct {
		name string
		due  string
		want int64
	}{
		{"inside first segment", "2025-01-09", 200},
		{"first due date inclusive", "2025-01-02", 200},
		{"before any segment", "2024-12-26", 0},
		{"end date excluded, second segment takes over", "2025-03-06", 250},
		{"open-ended far future", "2027-06-03", 250},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.AmountDueForWeek(segments, day(tc.due))
			if !got.Equal(decimal.NewFromInt(tc.want)) {
				t.Errorf("AmountDueForWeek(%s) = %s, want %d", tc.due, got, tc.want)
			}
		})
	}
}

func TestAmountDueForWeek_AdjacentSegmentsResolveToExactlyOne(t *testing.T) {
	// No gap between the segments: every due date must resolve to exactly
	// one segment's amount, with the boundary week owned by the newer one.
	segments := []domain.ScheduleSegment{
		segment(200, "2025-01-02", "2025-02-06"),
		segment(300, "2025-02-06", ""),
	}

	for due := day("2025-01-02"); !due.After(day("2025-03-06")); due = due.AddDate(0, 0, 7) {
		got := engine.AmountDueForWeek(segments, due)
		want := decimal.NewFromInt(200)
		if !due.Before(day("2025-02-06")) {
			want = decimal.NewFromInt(300)
		}
		if !got.Equal(want) {
			t.Errorf("due %s: got %s, want %s", due.Format("2006-01-02"), got, want)
		}
	}
}

func TestAmountDueForWeek_NoSegments(t *testing.T) {
	got := engine.AmountDueForWeek(nil, day("2025-01-02"))
	if !got.IsZero() {
		t.Errorf("no segments should owe nothing, got %s", got)
	}
}

func TestNewScheduleSegment_RejectsMalformedRange(t *testing.T) {
	end := day("2025-01-01")
	_, err := domain.NewScheduleSegment("fm-alice", decimal.NewFromInt(200), day("2025-02-01"), &end)
	if err == nil {
		t.Fatal("expected end-before-start to be rejected at construction")
	}
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation, got %T", err)
	}
}

func TestNewScheduleSegment_RejectsNegativeAmount(t *testing.T) {
	_, err := domain.NewScheduleSegment("fm-alice", decimal.NewFromInt(-5), day("2025-02-01"), nil)
	if err == nil {
		t.Fatal("expected negative amount to be rejected")
	}
}

func TestCurrentAndFutureSegments(t *testing.T) {
	segments := []domain.ScheduleSegment{
		segment(250, "2025-06-01", ""),
		segment(200, "2025-01-02", "2025-06-01"),
	}
	today := day("2025-02-15")

	current := engine.CurrentSegment(segments, today)
	if current == nil || !current.WeeklyAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected current segment at 200, got %+v", current)
	}

	future := engine.FutureSegments(segments, today)
	if len(future) != 1 || !future[0].WeeklyAmount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected one future segment at 250, got %+v", future)
	}
}

func TestEarliestStart(t *testing.T) {
	if got := engine.EarliestStart(nil); got != nil {
		t.Errorf("no segments should have no earliest start, got %v", got)
	}

	segments := []domain.ScheduleSegment{
		segment(250, "2025-06-01", ""),
		segment(200, "2025-01-02", "2025-06-01"),
	}
	got := engine.EarliestStart(segments)
	if got == nil || !got.Equal(day("2025-01-02")) {
		t.Errorf("expected 2025-01-02, got %v", got)
	}
}
