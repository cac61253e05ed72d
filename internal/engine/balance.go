package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
)

// CalculateBalance produces the week-by-week ledger for one flatmate:
// every due weekday from the analysis start date (inclusive) through asOf,
// each week's amount due resolved from the schedule and amount paid summed
// from the flatmate's matched rent-payment transactions, with running totals.
//
// When analysisStart is nil the earliest segment start date is used; when
// that is also absent the flatmate gets an empty breakdown and a zero
// balance.
func CalculateBalance(
	flatmate domain.Flatmate,
	transactions []domain.Transaction,
	segments []domain.ScheduleSegment,
	analysisStart *time.Time,
	asOf time.Time,
	dueWeekday time.Weekday,
) domain.FlatmateBalance {
	balance := domain.FlatmateBalance{
		FlatmateID:   flatmate.ID,
		FlatmateName: flatmate.Name,
		Weeks:        []domain.WeekBreakdown{},
		TotalDue:     decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalBalance: decimal.Zero,
	}

	start := analysisStart
	if start == nil {
		start = EarliestStart(segments)
	}
	if start == nil {
		return balance
	}

	firstDue := NextDueDate(*start, dueWeekday)
	lastDue := NextDueDate(asOf, dueWeekday)
	if lastDue.Before(firstDue) {
		return balance
	}

	// A transaction belongs to the week whose due date it rounds forward to,
	// using the same alignment rule as everything else. Keyed by formatted
	// date so transactions in other locations still land in the right week.
	byWeek := make(map[string][]domain.Transaction)
	for _, tx := range transactions {
		if tx.MatchedUserID != flatmate.ID || !tx.IsRentPayment() {
			continue
		}
		due := NextDueDate(tx.Date, dueWeekday)
		byWeek[due.Format("2006-01-02")] = append(byWeek[due.Format("2006-01-02")], tx)
	}

	for due := firstDue; !due.After(lastDue); due = due.AddDate(0, 0, 7) {
		week := domain.WeekBreakdown{
			DueDate:    due,
			AmountDue:  AmountDueForWeek(segments, due),
			AmountPaid: decimal.Zero,
		}
		for _, tx := range byWeek[due.Format("2006-01-02")] {
			week.AmountPaid = week.AmountPaid.Add(tx.Amount)
			week.Transactions = append(week.Transactions, tx)
		}

		balance.Weeks = append(balance.Weeks, week)
		balance.TotalDue = balance.TotalDue.Add(week.AmountDue)
		balance.TotalPaid = balance.TotalPaid.Add(week.AmountPaid)
	}

	balance.TotalBalance = balance.TotalPaid.Sub(balance.TotalDue)
	return balance
}
