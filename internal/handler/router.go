package handler

import (
	"net/http"
	"time"

	"github.com/jbaxter/flatledger/internal/infra/observability"
	"github.com/jbaxter/flatledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Everything under /v1 except login requires a valid access token.
func NewRouter(
	flatmateSvc *service.FlatmateService,
	ledgerSvc *service.LedgerService,
	syncSvc *service.SyncService,
	authSvc *service.AuthService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(syncSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if authSvc == nil {
			// Auth is mandatory; without it none of the API works.
			r.Handle("/*", serviceUnavailableHandler())
			return
		}

		r.Post("/auth/login", authLoginHandler(authSvc, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			// Flatmates & matching rules
			r.Get("/flatmates", listFlatmatesHandler(flatmateSvc, logger))
			r.Post("/flatmates", createFlatmateHandler(flatmateSvc, logger))
			r.Get("/flatmates/{flatmateId}", getFlatmateHandler(flatmateSvc, logger))
			r.Patch("/flatmates/{flatmateId}/rules", updateMatchRulesHandler(flatmateSvc, logger))
			r.Post("/flatmates/{flatmateId}/deactivate", deactivateFlatmateHandler(flatmateSvc, logger))

			// Payment schedules
			r.Get("/flatmates/{flatmateId}/schedule", listScheduleHandler(flatmateSvc, logger))
			r.Post("/flatmates/{flatmateId}/schedule", addScheduleSegmentHandler(flatmateSvc, logger))
			r.Post("/flatmates/{flatmateId}/schedule/{segmentId}/close", closeScheduleSegmentHandler(flatmateSvc, logger))
			r.Delete("/flatmates/{flatmateId}/schedule/{segmentId}", deleteScheduleSegmentHandler(flatmateSvc, logger))

			// Balances & autopayment planning
			r.Get("/balances", allBalancesHandler(ledgerSvc, logger))
			r.Get("/flatmates/{flatmateId}/balance", flatmateBalanceHandler(ledgerSvc, logger))
			r.Get("/flatmates/{flatmateId}/autopayment", autopaymentHandler(ledgerSvc, logger))

			// Transactions & manual matches
			r.Get("/transactions", listTransactionsHandler(flatmateSvc, logger))
			r.Get("/transactions/{transactionId}", getTransactionHandler(flatmateSvc, logger))
			r.Put("/transactions/{transactionId}/match", setManualMatchHandler(flatmateSvc, logger))
			r.Delete("/transactions/{transactionId}/match", clearManualMatchHandler(flatmateSvc, logger))

			// Bank feed sync
			r.Post("/sync", syncHandler(syncSvc, logger))
			r.Get("/sync/status", syncStatusHandler(syncSvc, metrics, logger))
			r.Post("/sync/rematch", rematchHandler(syncSvc, logger))
		})
	})

	return r
}

func serviceUnavailableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusServiceUnavailable, "service not configured")
	}
}

// ============================================================
// Health
// ============================================================

func healthzHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		store := "unknown"

		if syncSvc != nil {
			if _, err := syncSvc.Status(r.Context()); err != nil {
				logger.Warn("healthz: store probe failed", zap.Error(err))
				status = "degraded"
				store = "unreachable"
			} else {
				store = "healthy"
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":     status,
			"store":      store,
			"checked_at": time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
