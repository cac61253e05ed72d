package handler

import (
	"net/http"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Balance & Autopayment Handlers
// ============================================================

func allBalancesHandler(ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/balances")
		defer span.End()

		balances, err := ledgerSvc.AllBalances(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"balances": balances,
			"count":    len(balances),
		})
	}
}

func flatmateBalanceHandler(ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/flatmates/{flatmateId}/balance")
		defer span.End()

		balance, err := ledgerSvc.FlatmateBalance(ctx, chi.URLParam(r, "flatmateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, balance)
	}
}

func autopaymentHandler(ledgerSvc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/flatmates/{flatmateId}/autopayment")
		defer span.End()

		mode := domain.PlanMode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = domain.PlanSpreadCatchup
		}

		steps, err := ledgerSvc.AutopaymentPlan(ctx, chi.URLParam(r, "flatmateId"), mode)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Bank-UI-ready copy values alongside the raw step data.
		type stepView struct {
			domain.AutopaymentStep
			AmountValue    string `json:"amount_value"`
			StartDateValue string `json:"start_date_value"`
		}
		views := make([]stepView, 0, len(steps))
		for i := range steps {
			views = append(views, stepView{
				AutopaymentStep: steps[i],
				AmountValue:     steps[i].AmountValue(),
				StartDateValue:  steps[i].StartDateValue(),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"mode":  mode,
			"steps": views,
			"count": len(views),
		})
	}
}
