package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/engine"
)

func planOn(t *testing.T, rate, balance int64, future []domain.ScheduleSegment, mode domain.PlanMode) []domain.AutopaymentStep {
	t.Helper()
	return engine.PlanAutopayment(
		decimal.NewFromInt(rate),
		decimal.NewFromInt(balance),
		future,
		mode,
		day("2025-01-02"), // Thursday
		time.Thursday,
	)
}

func TestPlanAutopayment_SpreadCatchupBehind(t *testing.T) {
	steps := planOn(t, 200, -100, nil, domain.PlanSpreadCatchup)

	if len(steps) != 2 {
		t.Fatalf("expected correction + ongoing step, got %d", len(steps))
	}

	correction := steps[0]
	if correction.Kind != domain.StepCorrection {
		t.Errorf("expected correction step first, got %s", correction.Kind)
	}
	// 200 - (-100)/8 = 212.5
	if !correction.Amount.Equal(decimal.RequireFromString("212.5")) {
		t.Errorf("expected catch-up rate 212.5, got %s", correction.Amount)
	}
	if correction.Weeks != 8 {
		t.Errorf("expected 8-week correction window, got %d", correction.Weeks)
	}
	if !correction.StartDate.Equal(day("2025-01-02")) || !correction.EndDate.Equal(day("2025-02-20")) {
		t.Errorf("unexpected correction window %s..%s",
			correction.StartDate.Format("2006-01-02"), correction.EndDate.Format("2006-01-02"))
	}
	if correction.AmountValue() != "212.50" {
		t.Errorf("expected copyable amount '212.50', got %q", correction.AmountValue())
	}

	ongoing := steps[1]
	if ongoing.Kind != domain.StepStandard {
		t.Errorf("expected standard step after correction, got %s", ongoing.Kind)
	}
	if !ongoing.StartDate.Equal(day("2025-02-27")) {
		t.Errorf("standard rate should resume the week after the window, got %s", ongoing.StartDate.Format("2006-01-02"))
	}
	if !ongoing.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected nominal rate 200, got %s", ongoing.Amount)
	}
	if ongoing.Weeks != 52 {
		t.Errorf("expected bounded 52-week horizon, got %d", ongoing.Weeks)
	}

	for i, s := range steps {
		if s.Number != i+1 {
			t.Errorf("steps must be numbered sequentially, step %d has number %d", i, s.Number)
		}
	}
}

func TestPlanAutopayment_ScenarioCatchupRate(t *testing.T) {
	steps := planOn(t, 200, -200, nil, domain.PlanSpreadCatchup)

	// 200 - (-200)/8 = 225
	if !steps[0].Amount.Equal(decimal.NewFromInt(225)) {
		t.Errorf("expected first step of 225/week, got %s", steps[0].Amount)
	}
}

func TestPlanAutopayment_SpreadCatchupAhead(t *testing.T) {
	steps := planOn(t, 200, 400, nil, domain.PlanSpreadCatchup)

	// 200 - 400/8 = 150: the credit is used up over the window.
	if steps[0].Kind != domain.StepCorrection {
		t.Fatalf("expected correction step, got %s", steps[0].Kind)
	}
	if !steps[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected reduced rate 150, got %s", steps[0].Amount)
	}
}

func TestPlanAutopayment_CorrectionNeverNegative(t *testing.T) {
	steps := planOn(t, 100, 10000, nil, domain.PlanSpreadCatchup)

	if steps[0].Amount.IsNegative() {
		t.Errorf("correction amount must floor at zero, got %s", steps[0].Amount)
	}
	if !steps[0].Amount.IsZero() {
		t.Errorf("expected floored zero amount, got %s", steps[0].Amount)
	}
}

func TestPlanAutopayment_ImmediateBehind(t *testing.T) {
	steps := planOn(t, 200, -350, nil, domain.PlanImmediate)

	if len(steps) != 2 {
		t.Fatalf("expected one-time + ongoing step, got %d", len(steps))
	}
	oneTime := steps[0]
	if oneTime.Kind != domain.StepOneTime {
		t.Fatalf("expected one-time step, got %s", oneTime.Kind)
	}
	if !oneTime.Amount.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected one-time payment of 350, got %s", oneTime.Amount)
	}
	if !oneTime.StartDate.Equal(day("2025-01-02")) || oneTime.Weeks != 1 {
		t.Errorf("one-time step should land on the next due date, got %+v", oneTime)
	}
	if !steps[1].StartDate.Equal(day("2025-01-09")) {
		t.Errorf("nominal rate should resume the following week, got %s", steps[1].StartDate.Format("2006-01-02"))
	}
}

func TestPlanAutopayment_ImmediateCoversGapToLaterSegment(t *testing.T) {
	// Rate change scheduled 20 weeks out: the current rate must keep
	// running in between, not leave the gap uncovered.
	future := []domain.ScheduleSegment{segment(250, "2025-05-22", "")}

	steps := planOn(t, 200, -350, future, domain.PlanImmediate)

	if len(steps) != 3 {
		t.Fatalf("expected one-time + bridge + schedule step, got %d: %+v", len(steps), steps)
	}
	bridge := steps[1]
	if bridge.Kind != domain.StepStandard || !bridge.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected current rate 200 until the change, got %s %s", bridge.Kind, bridge.Amount)
	}
	if !bridge.StartDate.Equal(day("2025-01-09")) || !bridge.EndDate.Equal(day("2025-05-15")) {
		t.Errorf("unexpected bridge window %s..%s",
			bridge.StartDate.Format("2006-01-02"), bridge.EndDate.Format("2006-01-02"))
	}
	if bridge.Weeks != 19 {
		t.Errorf("expected 19 bridge weeks, got %d", bridge.Weeks)
	}
	if !steps[2].StartDate.Equal(day("2025-05-22")) || !steps[2].Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected new rate 250 from 2025-05-22, got %+v", steps[2])
	}
}

func TestPlanAutopayment_ImmediateAhead(t *testing.T) {
	steps := planOn(t, 200, 150, nil, domain.PlanImmediate)

	// Credit is absorbed implicitly: no correction step at all.
	if len(steps) != 1 || steps[0].Kind != domain.StepStandard {
		t.Fatalf("expected a single standard step, got %+v", steps)
	}
	if !steps[0].StartDate.Equal(day("2025-01-02")) {
		t.Errorf("expected standard step from next due date, got %s", steps[0].StartDate.Format("2006-01-02"))
	}
}

func TestPlanAutopayment_ZeroBalanceNoCorrection(t *testing.T) {
	for _, mode := range []domain.PlanMode{domain.PlanSpreadCatchup, domain.PlanImmediate} {
		steps := planOn(t, 200, 0, nil, mode)
		if len(steps) != 1 || steps[0].Kind != domain.StepStandard {
			t.Errorf("mode %s: zero balance must not emit a correction, got %+v", mode, steps)
		}
	}
}

func TestPlanAutopayment_FutureSegments(t *testing.T) {
	future := []domain.ScheduleSegment{
		segment(250, "2025-02-01", "2025-04-01"),
		segment(300, "2025-04-01", ""),
	}

	steps := planOn(t, 200, 0, future, domain.PlanSpreadCatchup)

	if len(steps) != 3 {
		t.Fatalf("expected bridge + two schedule steps, got %d: %+v", len(steps), steps)
	}
	// Current rate keeps running until the first segment takes over.
	if !steps[0].Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected bridging step at 200, got %s", steps[0].Amount)
	}
	if !steps[0].StartDate.Equal(day("2025-01-02")) || !steps[0].EndDate.Equal(day("2025-01-30")) {
		t.Errorf("unexpected bridge window %s..%s",
			steps[0].StartDate.Format("2006-01-02"), steps[0].EndDate.Format("2006-01-02"))
	}
	if !steps[1].Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected first schedule step at 250, got %s", steps[1].Amount)
	}
	// 2025-02-01 is a Saturday; first due date inside the segment is Thursday
	// 2025-02-06, and the last one before 2025-04-01 is 2025-03-27.
	if !steps[1].StartDate.Equal(day("2025-02-06")) || !steps[1].EndDate.Equal(day("2025-03-27")) {
		t.Errorf("unexpected first schedule step window %s..%s",
			steps[1].StartDate.Format("2006-01-02"), steps[1].EndDate.Format("2006-01-02"))
	}
	if !steps[2].Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected second schedule step at 300, got %s", steps[2].Amount)
	}
	if !steps[2].StartDate.Equal(day("2025-04-03")) {
		t.Errorf("expected second schedule step from 2025-04-03, got %s", steps[2].StartDate.Format("2006-01-02"))
	}
}

func TestPlanAutopayment_MergesAdjacentEqualSteps(t *testing.T) {
	future := []domain.ScheduleSegment{
		segment(250, "2025-02-01", "2025-04-01"),
		segment(250, "2025-04-01", "2025-06-01"),
	}

	steps := planOn(t, 200, 0, future, domain.PlanSpreadCatchup)

	if len(steps) != 2 {
		t.Fatalf("adjacent equal-amount segments must merge into one step, got %d: %+v", len(steps), steps)
	}
	merged := steps[1]
	if !merged.StartDate.Equal(day("2025-02-06")) || !merged.EndDate.Equal(day("2025-05-29")) {
		t.Errorf("unexpected merged window %s..%s",
			merged.StartDate.Format("2006-01-02"), merged.EndDate.Format("2006-01-02"))
	}
	if merged.Weeks != engine.WeeksBetween(merged.StartDate, merged.EndDate) {
		t.Errorf("merged step week count not recomputed, got %d", merged.Weeks)
	}
}

func TestPlanAutopayment_CorrectionClipsFutureSegment(t *testing.T) {
	// Segment starts inside the correction window; its step must be clipped
	// to start after the window ends.
	future := []domain.ScheduleSegment{segment(250, "2025-01-20", "")}

	steps := planOn(t, 200, -100, future, domain.PlanSpreadCatchup)

	if len(steps) != 2 {
		t.Fatalf("expected correction + clipped schedule step, got %+v", steps)
	}
	if !steps[1].StartDate.Equal(day("2025-02-27")) {
		t.Errorf("schedule step must not overlap the correction window, got %s",
			steps[1].StartDate.Format("2006-01-02"))
	}
}

func TestPlanAutopayment_ChronologicalOrder(t *testing.T) {
	future := []domain.ScheduleSegment{
		segment(300, "2025-06-01", ""),
		segment(250, "2025-03-01", "2025-06-01"),
	}

	steps := planOn(t, 200, -80, future, domain.PlanSpreadCatchup)

	for i := 1; i < len(steps); i++ {
		if !steps[i].StartDate.After(steps[i-1].EndDate) {
			t.Errorf("steps out of chronological order at %d: %+v", i, steps)
		}
	}
}

func TestPlanAutopayment_NoRateNoSchedules(t *testing.T) {
	steps := planOn(t, 0, 0, nil, domain.PlanSpreadCatchup)

	if len(steps) != 0 {
		t.Errorf("nothing owed and nothing scheduled should produce no steps, got %+v", steps)
	}
}
