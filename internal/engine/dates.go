// Package engine implements the transaction matching and balance
// reconciliation core: pure, synchronous computations over immutable inputs.
// Nothing in this package performs I/O; persistence and transport live in the
// service layer.
package engine

import "time"

// Billing weeks are anchored to a single fixed due weekday. All date
// arithmetic in the matcher, calculator and planner goes through these two
// functions so rounding behaves identically everywhere.

// NextDueDate rounds forward to the next occurrence of the due weekday,
// unless the date already falls on it. The time component is discarded.
func NextDueDate(date time.Time, dueWeekday time.Weekday) time.Time {
	d := truncateToDay(date)
	offset := (int(dueWeekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// PrevDueDate rounds backward to the previous occurrence of the due weekday,
// unless the date already falls on it.
func PrevDueDate(date time.Time, dueWeekday time.Weekday) time.Time {
	d := truncateToDay(date)
	offset := (int(d.Weekday()) - int(dueWeekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// WeeksBetween counts inclusive due dates from start through end, both
// assumed to be aligned to the same weekday. Counted in calendar days, not
// wall-clock hours: a DST transition inside the range must not shift the
// week count.
func WeeksBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return daysBetween(start, end)/7 + 1
}

// daysBetween is the calendar-day distance between two dates, ignoring
// time-of-day and zone offsets.
func daysBetween(start, end time.Time) int {
	s := truncateToDay(start)
	e := truncateToDay(end)
	su := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	eu := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	return int(eu.Sub(su) / (24 * time.Hour))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
