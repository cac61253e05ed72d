package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/engine"
	"github.com/jbaxter/flatledger/internal/infra/observability"
	"github.com/jbaxter/flatledger/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var syncTracer = otel.Tracer("service/sync")

const (
	// syncOverlap is re-fetched before the last sync point so transactions
	// the bank posts late are still picked up. Idempotent thanks to the
	// external_id upsert.
	syncOverlap = 72 * time.Hour
	// defaultLookback bounds the first ever sync.
	defaultLookback = 90 * 24 * time.Hour
	// rematchConcurrency caps parallel match writes against the store.
	rematchConcurrency = 8
)

// SyncService pulls transactions from the bank feed, stores them and runs
// the matcher over everything not yet assigned.
type SyncService struct {
	feed        port.BankFeed
	store       port.LedgerStore
	recentSyncs port.Cache[time.Time]
	minInterval time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewSyncService creates the sync service with all dependencies injected.
func NewSyncService(
	feed port.BankFeed,
	store port.LedgerStore,
	recentSyncs port.Cache[time.Time],
	minInterval time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		feed:        feed,
		store:       store,
		recentSyncs: recentSyncs,
		minInterval: minInterval,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// ============================================================
// Sync — POST /v1/sync
// ============================================================

// Sync runs one fetch-store-match cycle and returns the updated status.
// Manually matched transactions are never touched.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStatus, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Sync")
	defer span.End()

	start := s.now()
	defer func() {
		s.metrics.RecordRequestDuration("sync", time.Since(start))
	}()

	if last, ok := s.recentSyncs.Get("sync"); ok {
		retryAfter := s.minInterval - start.Sub(last)
		if retryAfter < 0 {
			retryAfter = 0
		}
		s.metrics.IncrCacheHit("sync_interval")
		s.metrics.IncrSyncRun("rate_limited")
		return nil, &domain.ErrRateLimited{
			Operation:  "sync",
			RetryAfter: retryAfter.Round(time.Second).String(),
		}
	}
	s.metrics.IncrCacheMiss("sync_interval")

	runID := uuid.NewString()
	span.SetAttributes(attribute.String("sync.run_id", runID))

	status, err := s.store.GetSyncStatus(ctx)
	if err != nil {
		s.metrics.IncrSyncRun("error")
		return nil, fmt.Errorf("get sync status: %w", err)
	}

	since := start.Add(-defaultLookback)
	if status.LastSyncAt != nil {
		since = status.LastSyncAt.Add(-syncOverlap)
	}
	span.SetAttributes(attribute.String("since", since.Format("2006-01-02")))

	fetched, err := s.feed.FetchTransactions(ctx, since)
	if err != nil {
		s.logger.Error("sync: bank feed fetch failed", zap.Error(err))
		s.metrics.IncrExternalError("bankfeed")
		s.metrics.IncrSyncRun("error")
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	s.metrics.AddSyncFetched(len(fetched))

	created, err := s.store.UpsertTransactions(ctx, fetched)
	if err != nil {
		s.metrics.IncrSyncRun("error")
		return nil, fmt.Errorf("upsert transactions: %w", err)
	}

	matched, unmatched, err := s.matchUnassigned(ctx)
	if err != nil {
		s.metrics.IncrSyncRun("error")
		return nil, err
	}

	syncedAt := s.now()
	status = &domain.SyncStatus{
		LastSyncAt: &syncedAt,
		Fetched:    len(fetched),
		Created:    created,
		Matched:    matched,
		Unmatched:  unmatched,
	}
	if err := s.store.SaveSyncStatus(ctx, status); err != nil {
		s.metrics.IncrSyncRun("error")
		return nil, fmt.Errorf("save sync status: %w", err)
	}

	s.recentSyncs.Set("sync", syncedAt)
	s.metrics.IncrSyncRun("success")
	s.logger.Info("sync completed",
		zap.String("run_id", runID),
		zap.Int("fetched", len(fetched)),
		zap.Int("created", created),
		zap.Int("matched", matched),
		zap.Int("unmatched", unmatched),
	)

	return status, nil
}

// matchUnassigned runs the matcher over every unmatched transaction and
// persists the verdicts.
func (s *SyncService) matchUnassigned(ctx context.Context) (matched, unmatched int, err error) {
	flatmates, err := s.store.ListFlatmates(ctx, false)
	if err != nil {
		return 0, 0, fmt.Errorf("list flatmates: %w", err)
	}

	pending, err := s.store.ListTransactions(ctx, domain.TransactionFilter{UnmatchedOnly: true})
	if err != nil {
		return 0, 0, fmt.Errorf("list unmatched transactions: %w", err)
	}

	for i := range pending {
		tx := &pending[i]
		res := engine.Match(tx, flatmates)
		if res == nil {
			unmatched++
			continue
		}
		engine.ApplyMatch(tx, res)
		if err := s.store.UpdateTransactionMatch(ctx, tx.ID, res.FlatmateID, res.Type, res.Confidence); err != nil {
			return matched, unmatched, fmt.Errorf("update match for %s: %w", tx.ID, err)
		}
		s.metrics.IncrMatch(string(res.Type))
		matched++
	}

	return matched, unmatched, nil
}

// ============================================================
// Status — GET /v1/sync/status
// ============================================================

func (s *SyncService) Status(ctx context.Context) (*domain.SyncStatus, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Status")
	defer span.End()

	status, err := s.store.GetSyncStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sync status: %w", err)
	}
	return status, nil
}

// ============================================================
// Rematch — POST /v1/sync/rematch
// ============================================================

// Rematch re-runs the matcher over the whole history, picking up rule
// changes. Manual matches are skipped by the matcher and additionally
// guarded at the store, so they survive unchanged. Returns how many
// transactions changed assignment.
func (s *SyncService) Rematch(ctx context.Context) (int, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Rematch")
	defer span.End()

	flatmates, err := s.store.ListFlatmates(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list flatmates: %w", err)
	}

	all, err := s.store.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	var changed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rematchConcurrency)

	for i := range all {
		tx := all[i]
		if tx.ManualMatch {
			continue
		}
		g.Go(func() error {
			res := engine.Match(&tx, flatmates)

			newUserID := ""
			newType := domain.MatchNone
			newConfidence := 0.0
			if res != nil {
				newUserID = res.FlatmateID
				newType = res.Type
				newConfidence = res.Confidence
			}
			if newUserID == tx.MatchedUserID && newType == tx.MatchType {
				return nil
			}

			if err := s.store.UpdateTransactionMatch(gCtx, tx.ID, newUserID, newType, newConfidence); err != nil {
				return fmt.Errorf("update match for %s: %w", tx.ID, err)
			}
			s.metrics.IncrMatch(string(newType))
			changed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(changed.Load()), err
	}

	s.logger.Info("rematch completed", zap.Int64("changed", changed.Load()))
	return int(changed.Load()), nil
}
