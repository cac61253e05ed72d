package handler

import (
	"net/http"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/infra/observability"
	"github.com/jbaxter/flatledger/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Sync Handlers
// ============================================================

func syncHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync")
		defer span.End()

		status, err := syncSvc.Sync(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func syncStatusHandler(syncSvc *service.SyncService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sync/status")
		defer span.End()

		status, err := syncSvc.Status(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"last_sync_at": status.LastSyncAt,
			"fetched":      status.Fetched,
			"created":      status.Created,
			"matched":      status.Matched,
			"unmatched":    status.Unmatched,
			"match_counts": metrics.MatchCounts(
				string(domain.MatchAccount),
				string(domain.MatchCard),
				string(domain.MatchName),
				string(domain.MatchManual),
			),
		})
	}
}

func rematchHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync/rematch")
		defer span.End()

		changed, err := syncSvc.Rematch(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
	}
}
