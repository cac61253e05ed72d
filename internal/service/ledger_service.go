package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/engine"
	"github.com/jbaxter/flatledger/internal/infra/observability"
	"github.com/jbaxter/flatledger/internal/port"
)

var ledgerTracer = otel.Tracer("service/ledger")

// balanceConcurrency caps parallel per-flatmate ledger loads.
const balanceConcurrency = 4

// LedgerService computes balances and autopayment plans from stored
// transactions and schedules. All arithmetic lives in the engine package;
// this layer only loads data and applies household-wide settings.
type LedgerService struct {
	store         port.LedgerStore
	metrics       *observability.Metrics
	logger        *zap.Logger
	dueWeekday    time.Weekday
	analysisStart *time.Time
	now           func() time.Time
}

// NewLedgerService creates the ledger service. analysisStart may be nil, in
// which case each flatmate's history starts at their earliest segment.
func NewLedgerService(
	store port.LedgerStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
	dueWeekday time.Weekday,
	analysisStart *time.Time,
) *LedgerService {
	return &LedgerService{
		store:         store,
		metrics:       metrics,
		logger:        logger,
		dueWeekday:    dueWeekday,
		analysisStart: analysisStart,
		now:           time.Now,
	}
}

// ============================================================
// FlatmateBalance — GET /v1/flatmates/{id}/balance
// ============================================================

func (s *LedgerService) FlatmateBalance(ctx context.Context, flatmateID string) (*domain.FlatmateBalance, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.FlatmateBalance")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("balance", time.Since(start))
	}()

	flatmate, err := s.store.GetFlatmate(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("get flatmate: %w", err)
	}

	balance, err := s.calculate(ctx, flatmate)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// ============================================================
// AllBalances — GET /v1/balances
// ============================================================

// AllBalances computes every active flatmate's balance concurrently.
// Results come back sorted by flatmate ID so the response is stable.
func (s *LedgerService) AllBalances(ctx context.Context) ([]domain.FlatmateBalance, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AllBalances")
	defer span.End()

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("balances", time.Since(start))
	}()

	flatmates, err := s.store.ListFlatmates(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list flatmates: %w", err)
	}

	var (
		mu       sync.Mutex
		balances = make([]domain.FlatmateBalance, 0, len(flatmates))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(balanceConcurrency)

	for i := range flatmates {
		flatmate := flatmates[i]
		g.Go(func() error {
			balance, err := s.calculate(gCtx, &flatmate)
			if err != nil {
				return err
			}
			mu.Lock()
			balances = append(balances, *balance)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].FlatmateID < balances[j].FlatmateID
	})
	return balances, nil
}

// ============================================================
// AutopaymentPlan — GET /v1/flatmates/{id}/autopayment
// ============================================================

// AutopaymentPlan derives standing-order steps from the flatmate's current
// balance and schedule. The plan is advisory; nothing is written.
func (s *LedgerService) AutopaymentPlan(ctx context.Context, flatmateID string, mode domain.PlanMode) ([]domain.AutopaymentStep, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.AutopaymentPlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("flatmate.id", flatmateID),
		attribute.String("plan.mode", string(mode)),
	)

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("autopayment", time.Since(start))
	}()

	switch mode {
	case domain.PlanSpreadCatchup, domain.PlanImmediate:
	default:
		return nil, &domain.ErrValidation{Field: "mode", Message: "must be spread_catchup or immediate"}
	}

	flatmate, err := s.store.GetFlatmate(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("get flatmate: %w", err)
	}

	balance, err := s.calculate(ctx, flatmate)
	if err != nil {
		return nil, err
	}

	segments, err := s.store.ListScheduleSegments(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("list schedule segments: %w", err)
	}

	now := s.now()
	currentRate := decimal.Zero
	if current := engine.CurrentSegment(segments, now); current != nil {
		currentRate = current.WeeklyAmount
	}

	steps := engine.PlanAutopayment(
		currentRate,
		balance.TotalBalance,
		engine.FutureSegments(segments, now),
		mode,
		now,
		s.dueWeekday,
	)
	return steps, nil
}

// calculate loads one flatmate's transactions and schedule and runs the
// balance engine over them.
func (s *LedgerService) calculate(ctx context.Context, flatmate *domain.Flatmate) (*domain.FlatmateBalance, error) {
	transactions, err := s.store.ListTransactions(ctx, domain.TransactionFilter{MatchedUserID: flatmate.ID})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	segments, err := s.store.ListScheduleSegments(ctx, flatmate.ID)
	if err != nil {
		return nil, fmt.Errorf("list schedule segments: %w", err)
	}

	balance := engine.CalculateBalance(*flatmate, transactions, segments, s.analysisStart, s.now(), s.dueWeekday)
	return &balance, nil
}
