package handler

import (
	"encoding/json"
	"net/http"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Transaction Handlers
// ============================================================

func listTransactionsHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		page, pageSize := parsePagination(r)
		filter := domain.TransactionFilter{
			MatchedUserID: r.URL.Query().Get("flatmate_id"),
			UnmatchedOnly: r.URL.Query().Get("unmatched") == "true",
			Page:          page,
			PageSize:      pageSize,
		}
		if since := r.URL.Query().Get("since"); since != "" {
			d, err := parseDate(since)
			if err != nil {
				writeError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
				return
			}
			filter.Since = &d
		}

		transactions, err := flatmateSvc.ListTransactions(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": transactions,
			"count":        len(transactions),
			"page":         page,
			"page_size":    pageSize,
		})
	}
}

func getTransactionHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionId}")
		defer span.End()

		transaction, err := flatmateSvc.GetTransaction(ctx, chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, transaction)
	}
}

func setManualMatchHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/transactions/{transactionId}/match")
		defer span.End()

		var req struct {
			FlatmateID string `json:"flatmate_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FlatmateID == "" {
			writeError(w, http.StatusBadRequest, "flatmate_id is required")
			return
		}

		transactionID := chi.URLParam(r, "transactionId")
		if err := flatmateSvc.SetManualMatch(ctx, transactionID, req.FlatmateID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":          transactionID,
			"flatmate_id": req.FlatmateID,
			"match_type":  domain.MatchManual,
		})
	}
}

func clearManualMatchHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{transactionId}/match")
		defer span.End()

		transactionID := chi.URLParam(r, "transactionId")
		if err := flatmateSvc.ClearManualMatch(ctx, transactionID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":         transactionID,
			"match_type": domain.MatchNone,
		})
	}
}
