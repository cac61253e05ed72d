package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Flatmate Handlers
// ============================================================

func listFlatmatesHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/flatmates")
		defer span.End()

		includeInactive := r.URL.Query().Get("include_inactive") == "true"

		flatmates, err := flatmateSvc.ListFlatmates(ctx, includeInactive)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"flatmates": flatmates,
			"count":     len(flatmates),
		})
	}
}

func createFlatmateHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/flatmates")
		defer span.End()

		var req service.CreateFlatmateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		flatmate, err := flatmateSvc.CreateFlatmate(ctx, RoleFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, flatmate)
	}
}

func getFlatmateHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/flatmates/{flatmateId}")
		defer span.End()

		flatmate, err := flatmateSvc.GetFlatmate(ctx, chi.URLParam(r, "flatmateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, flatmate)
	}
}

func updateMatchRulesHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/flatmates/{flatmateId}/rules")
		defer span.End()

		var update domain.MatchRuleUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		flatmate, err := flatmateSvc.UpdateMatchRules(ctx,
			FlatmateIDFromContext(ctx), RoleFromContext(ctx),
			chi.URLParam(r, "flatmateId"), &update)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, flatmate)
	}
}

func deactivateFlatmateHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/flatmates/{flatmateId}/deactivate")
		defer span.End()

		flatmateID := chi.URLParam(r, "flatmateId")
		err := flatmateSvc.DeactivateFlatmate(ctx,
			FlatmateIDFromContext(ctx), RoleFromContext(ctx), flatmateID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":     flatmateID,
			"active": false,
		})
	}
}

// ============================================================
// Payment Schedule Handlers
// ============================================================

func listScheduleHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/flatmates/{flatmateId}/schedule")
		defer span.End()

		segments, err := flatmateSvc.ListScheduleSegments(ctx, chi.URLParam(r, "flatmateId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"segments": segments,
			"count":    len(segments),
		})
	}
}

func addScheduleSegmentHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/flatmates/{flatmateId}/schedule")
		defer span.End()

		var req struct {
			WeeklyAmount decimal.Decimal `json:"weekly_amount"`
			StartDate    string          `json:"start_date"`
			EndDate      string          `json:"end_date,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		var end *time.Time
		if req.EndDate != "" {
			e, err := parseDate(req.EndDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
				return
			}
			end = &e
		}

		segment, err := flatmateSvc.AddScheduleSegment(ctx, RoleFromContext(ctx),
			chi.URLParam(r, "flatmateId"), req.WeeklyAmount, start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, segment)
	}
}

func closeScheduleSegmentHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/flatmates/{flatmateId}/schedule/{segmentId}/close")
		defer span.End()

		var req struct {
			EndDate string `json:"end_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		endDate, err := parseDate(req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}

		segmentID := chi.URLParam(r, "segmentId")
		err = flatmateSvc.CloseScheduleSegment(ctx, RoleFromContext(ctx),
			chi.URLParam(r, "flatmateId"), segmentID, endDate)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":       segmentID,
			"end_date": endDate.Format("2006-01-02"),
		})
	}
}

func deleteScheduleSegmentHandler(flatmateSvc *service.FlatmateService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/flatmates/{flatmateId}/schedule/{segmentId}")
		defer span.End()

		err := flatmateSvc.DeleteScheduleSegment(ctx, RoleFromContext(ctx),
			chi.URLParam(r, "flatmateId"), chi.URLParam(r, "segmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
