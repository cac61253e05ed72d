package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
)

const (
	// correctionWeeks is the fixed window over which a balance discrepancy
	// is spread in catch-up mode.
	correctionWeeks = 8
	// horizonWeeks bounds the synthesized ongoing step when a flatmate has
	// no future schedule segments; a standing order can't run forever.
	horizonWeeks = 52
)

// PlanAutopayment produces the ordered standing-order steps that correct any
// balance drift and then continue at scheduled rates: zero or one correction
// step first, the current rate until the first scheduled change, then one
// step per future segment, with adjacent equal-amount steps merged. Output
// is strictly chronological and renumbered after merging.
func PlanAutopayment(
	currentRate decimal.Decimal,
	totalBalance decimal.Decimal,
	futureSegments []domain.ScheduleSegment,
	mode domain.PlanMode,
	now time.Time,
	dueWeekday time.Weekday,
) []domain.AutopaymentStep {
	nextDue := NextDueDate(now, dueWeekday)

	var steps []domain.AutopaymentStep
	resumeFrom := nextDue

	switch {
	case totalBalance.IsNegative() && mode == domain.PlanImmediate:
		arrears := totalBalance.Abs()
		steps = append(steps, domain.AutopaymentStep{
			Kind:        domain.StepOneTime,
			Amount:      arrears,
			StartDate:   nextDue,
			EndDate:     nextDue,
			Weeks:       1,
			Description: fmt.Sprintf("One-time payment of %s to clear arrears", arrears.StringFixed(2)),
		})
		resumeFrom = nextDue.AddDate(0, 0, 7)

	case !totalBalance.IsZero() && mode == domain.PlanSpreadCatchup:
		// rate - balance/8: more than nominal when behind (balance is
		// negative), less when a credit is being used up. Never below zero.
		amount := currentRate.Sub(totalBalance.Div(decimal.NewFromInt(correctionWeeks)))
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		end := nextDue.AddDate(0, 0, 7*(correctionWeeks-1))
		desc := fmt.Sprintf("Catch-up rate of %s/week for %d weeks", amount.StringFixed(2), correctionWeeks)
		if totalBalance.IsPositive() {
			desc = fmt.Sprintf("Reduced rate of %s/week for %d weeks while credit is used up", amount.StringFixed(2), correctionWeeks)
		}
		steps = append(steps, domain.AutopaymentStep{
			Kind:        domain.StepCorrection,
			Amount:      amount,
			StartDate:   nextDue,
			EndDate:     end,
			Weeks:       correctionWeeks,
			Description: desc,
		})
		// Scheduled steps resume the week after the correction window ends.
		resumeFrom = NextDueDate(end.AddDate(0, 0, 1), dueWeekday)
	}
	// Balance exactly zero, or ahead in immediate mode: no correction step;
	// a credit is absorbed implicitly by the ordinary weekly cycle.

	future := append([]domain.ScheduleSegment(nil), futureSegments...)
	SortSegments(future)

	emitted := false
	for i := range future {
		seg := &future[i]

		start := seg.StartDate
		if start.Before(resumeFrom) {
			start = resumeFrom
		}
		start = NextDueDate(start, dueWeekday)

		end := resumeFrom.AddDate(0, 0, 7*(horizonWeeks-1))
		if seg.EndDate != nil {
			// Last due date strictly inside the [start, end) range.
			end = PrevDueDate(seg.EndDate.AddDate(0, 0, -1), dueWeekday)
		}
		if end.Before(start) {
			continue
		}

		// The current rate keeps running until the first scheduled change
		// takes over; a later segment must not leave the weeks before it
		// uncovered.
		if !emitted && currentRate.IsPositive() {
			if bridgeEnd := start.AddDate(0, 0, -7); !bridgeEnd.Before(resumeFrom) {
				steps = appendStep(steps, domain.AutopaymentStep{
					Kind:        domain.StepStandard,
					Amount:      currentRate,
					StartDate:   resumeFrom,
					EndDate:     bridgeEnd,
					Weeks:       WeeksBetween(resumeFrom, bridgeEnd),
					Description: fmt.Sprintf("Standard weekly payment of %s", currentRate.StringFixed(2)),
				})
			}
		}

		steps = appendStep(steps, domain.AutopaymentStep{
			Kind:        domain.StepStandard,
			Amount:      seg.WeeklyAmount,
			StartDate:   start,
			EndDate:     end,
			Weeks:       WeeksBetween(start, end),
			Description: fmt.Sprintf("Standard weekly payment of %s", seg.WeeklyAmount.StringFixed(2)),
		})
		emitted = true
	}

	if !emitted && currentRate.IsPositive() {
		end := resumeFrom.AddDate(0, 0, 7*(horizonWeeks-1))
		steps = appendStep(steps, domain.AutopaymentStep{
			Kind:        domain.StepStandard,
			Amount:      currentRate,
			StartDate:   resumeFrom,
			EndDate:     end,
			Weeks:       horizonWeeks,
			Description: fmt.Sprintf("Standard weekly payment of %s", currentRate.StringFixed(2)),
		})
	}

	for i := range steps {
		steps[i].Number = i + 1
	}
	return steps
}

// appendStep merges the new step into the previous one when the weekly
// amount is unchanged and the steps are date-adjacent (gap of at most one
// week); otherwise it appends.
func appendStep(steps []domain.AutopaymentStep, next domain.AutopaymentStep) []domain.AutopaymentStep {
	if n := len(steps); n > 0 {
		prev := &steps[n-1]
		gap := next.StartDate.Sub(prev.EndDate)
		if prev.Kind != domain.StepOneTime && prev.Amount.Equal(next.Amount) && gap > 0 && gap <= 7*24*time.Hour {
			prev.EndDate = next.EndDate
			prev.Weeks = WeeksBetween(prev.StartDate, prev.EndDate)
			return steps
		}
	}
	return append(steps, next)
}
