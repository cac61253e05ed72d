package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jbaxter/flatledger/internal/domain"
	"github.com/jbaxter/flatledger/internal/port"
)

var flatmateTracer = otel.Tracer("service/flatmate")

// FlatmateService manages household membership, matching rules and payment
// schedules. Write operations are permission-checked against the caller's
// role from the access token.
type FlatmateService struct {
	store  port.LedgerStore
	logger *zap.Logger
	now    func() time.Time
}

// NewFlatmateService creates a new flatmate service.
func NewFlatmateService(store port.LedgerStore, logger *zap.Logger) *FlatmateService {
	return &FlatmateService{store: store, logger: logger, now: time.Now}
}

// ============================================================
// Flatmates — /v1/flatmates
// ============================================================

func (s *FlatmateService) ListFlatmates(ctx context.Context, includeInactive bool) ([]domain.Flatmate, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.ListFlatmates")
	defer span.End()

	flatmates, err := s.store.ListFlatmates(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list flatmates: %w", err)
	}
	return flatmates, nil
}

func (s *FlatmateService) GetFlatmate(ctx context.Context, flatmateID string) (*domain.Flatmate, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.GetFlatmate")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	flatmate, err := s.store.GetFlatmate(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("get flatmate: %w", err)
	}
	return flatmate, nil
}

// CreateFlatmateRequest carries the fields for a new household member.
type CreateFlatmateRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role,omitempty"`
	BankAccountPattern string `json:"bank_account_pattern,omitempty"`
	CardSuffix         string `json:"card_suffix,omitempty"`
	MatchingName       string `json:"matching_name,omitempty"`
}

func (s *FlatmateService) CreateFlatmate(ctx context.Context, actorRole domain.Role, req *CreateFlatmateRequest) (*domain.Flatmate, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.CreateFlatmate")
	defer span.End()

	if actorRole != domain.RoleAdmin {
		return nil, &domain.ErrForbidden{Message: "only admins can add flatmates"}
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !strings.Contains(req.Email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "must be a valid email address"}
	}
	if err := validateCardSuffix(req.CardSuffix); err != nil {
		return nil, err
	}

	role := domain.RoleMember
	if req.Role == string(domain.RoleAdmin) {
		role = domain.RoleAdmin
	}

	flatmate, err := s.store.CreateFlatmate(ctx, &domain.Flatmate{
		Name:               strings.TrimSpace(req.Name),
		Email:              strings.ToLower(req.Email),
		Role:               role,
		Active:             true,
		BankAccountPattern: req.BankAccountPattern,
		CardSuffix:         req.CardSuffix,
		MatchingName:       req.MatchingName,
	})
	if err != nil {
		return nil, fmt.Errorf("create flatmate: %w", err)
	}

	s.logger.Info("flatmate created",
		zap.String("flatmate_id", flatmate.ID),
		zap.String("role", string(flatmate.Role)),
	)
	return flatmate, nil
}

// UpdateMatchRules changes how transactions are attributed to a flatmate.
// A member may edit their own rules; editing someone else's requires admin.
func (s *FlatmateService) UpdateMatchRules(ctx context.Context, actorID string, actorRole domain.Role, flatmateID string, update *domain.MatchRuleUpdate) (*domain.Flatmate, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.UpdateMatchRules")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	if actorID != flatmateID && actorRole != domain.RoleAdmin {
		return nil, &domain.ErrForbidden{Message: "cannot edit another flatmate's matching rules"}
	}
	if update.CardSuffix != nil {
		if err := validateCardSuffix(*update.CardSuffix); err != nil {
			return nil, err
		}
	}

	flatmate, err := s.store.UpdateMatchRules(ctx, flatmateID, update)
	if err != nil {
		return nil, fmt.Errorf("update match rules: %w", err)
	}

	s.logger.Info("match rules updated", zap.String("flatmate_id", flatmateID))
	return flatmate, nil
}

// DeactivateFlatmate retires a flatmate from matching and new billing.
// History stays intact; the record is never deleted.
func (s *FlatmateService) DeactivateFlatmate(ctx context.Context, actorID string, actorRole domain.Role, flatmateID string) error {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.DeactivateFlatmate")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	if actorRole != domain.RoleAdmin {
		return &domain.ErrForbidden{Message: "only admins can deactivate flatmates"}
	}
	if actorID == flatmateID {
		return &domain.ErrValidation{Field: "id", Message: "cannot deactivate yourself"}
	}

	if err := s.store.DeactivateFlatmate(ctx, flatmateID); err != nil {
		return fmt.Errorf("deactivate flatmate: %w", err)
	}

	s.logger.Info("flatmate deactivated", zap.String("flatmate_id", flatmateID))
	return nil
}

// ============================================================
// Payment schedule — /v1/flatmates/{id}/schedule
// ============================================================

func (s *FlatmateService) ListScheduleSegments(ctx context.Context, flatmateID string) ([]domain.ScheduleSegment, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.ListScheduleSegments")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	segments, err := s.store.ListScheduleSegments(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("list schedule segments: %w", err)
	}
	return segments, nil
}

// AddScheduleSegment appends a new rate period to a flatmate's schedule.
// The segment must not overlap any existing one.
func (s *FlatmateService) AddScheduleSegment(ctx context.Context, actorRole domain.Role, flatmateID string, weeklyAmount decimal.Decimal, start time.Time, end *time.Time) (*domain.ScheduleSegment, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.AddScheduleSegment")
	defer span.End()
	span.SetAttributes(attribute.String("flatmate.id", flatmateID))

	if actorRole != domain.RoleAdmin {
		return nil, &domain.ErrForbidden{Message: "only admins can edit payment schedules"}
	}

	if _, err := s.store.GetFlatmate(ctx, flatmateID); err != nil {
		return nil, fmt.Errorf("get flatmate: %w", err)
	}

	segment, err := domain.NewScheduleSegment(flatmateID, weeklyAmount, start, end)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListScheduleSegments(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("list schedule segments: %w", err)
	}
	for i := range existing {
		if segment.Overlaps(&existing[i]) {
			return nil, &domain.ErrConflict{
				Message: fmt.Sprintf("segment overlaps existing segment %s", existing[i].ID),
			}
		}
	}

	created, err := s.store.CreateScheduleSegment(ctx, segment)
	if err != nil {
		return nil, fmt.Errorf("create schedule segment: %w", err)
	}

	s.logger.Info("schedule segment added",
		zap.String("flatmate_id", flatmateID),
		zap.String("segment_id", created.ID),
		zap.String("weekly_amount", created.WeeklyAmount.StringFixed(2)),
	)
	return created, nil
}

// CloseScheduleSegment ends an open segment. The end date is exclusive, so
// the last covered week is the one before it.
func (s *FlatmateService) CloseScheduleSegment(ctx context.Context, actorRole domain.Role, flatmateID, segmentID string, endDate time.Time) error {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.CloseScheduleSegment")
	defer span.End()
	span.SetAttributes(attribute.String("segment.id", segmentID))

	if actorRole != domain.RoleAdmin {
		return &domain.ErrForbidden{Message: "only admins can edit payment schedules"}
	}

	segment, err := s.findSegment(ctx, flatmateID, segmentID)
	if err != nil {
		return err
	}
	if !segment.Open() {
		return &domain.ErrConflict{Message: "segment is already closed"}
	}
	if !endDate.After(segment.StartDate) {
		return &domain.ErrValidation{Field: "end_date", Message: "must be after start_date"}
	}

	if err := s.store.CloseScheduleSegment(ctx, flatmateID, segmentID, endDate); err != nil {
		return fmt.Errorf("close schedule segment: %w", err)
	}

	s.logger.Info("schedule segment closed",
		zap.String("flatmate_id", flatmateID),
		zap.String("segment_id", segmentID),
	)
	return nil
}

// DeleteScheduleSegment removes a segment that has not started yet. A
// segment already in force is part of billing history and can only be
// closed, never deleted.
func (s *FlatmateService) DeleteScheduleSegment(ctx context.Context, actorRole domain.Role, flatmateID, segmentID string) error {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.DeleteScheduleSegment")
	defer span.End()
	span.SetAttributes(attribute.String("segment.id", segmentID))

	if actorRole != domain.RoleAdmin {
		return &domain.ErrForbidden{Message: "only admins can edit payment schedules"}
	}

	segment, err := s.findSegment(ctx, flatmateID, segmentID)
	if err != nil {
		return err
	}
	if !segment.StartDate.After(s.now()) {
		return &domain.ErrConflict{Message: "segment already started; close it instead"}
	}

	if err := s.store.DeleteScheduleSegment(ctx, flatmateID, segmentID); err != nil {
		return fmt.Errorf("delete schedule segment: %w", err)
	}

	s.logger.Info("schedule segment deleted",
		zap.String("flatmate_id", flatmateID),
		zap.String("segment_id", segmentID),
	)
	return nil
}

func (s *FlatmateService) findSegment(ctx context.Context, flatmateID, segmentID string) (*domain.ScheduleSegment, error) {
	segments, err := s.store.ListScheduleSegments(ctx, flatmateID)
	if err != nil {
		return nil, fmt.Errorf("list schedule segments: %w", err)
	}
	for i := range segments {
		if segments[i].ID == segmentID {
			return &segments[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "schedule_segment", ID: segmentID}
}

// validateCardSuffix enforces the exact-4-digit rule the matcher relies on.
func validateCardSuffix(suffix string) error {
	if suffix == "" {
		return nil
	}
	if len(suffix) != 4 {
		return &domain.ErrValidation{Field: "card_suffix", Message: "must be exactly 4 digits"}
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return &domain.ErrValidation{Field: "card_suffix", Message: "must be exactly 4 digits"}
		}
	}
	return nil
}

// ============================================================
// Manual matches — /v1/transactions/{id}/match
// ============================================================

// SetManualMatch pins a transaction to a flatmate. Any household member
// can do this; the assignment survives every future sync and rematch.
func (s *FlatmateService) SetManualMatch(ctx context.Context, transactionID, flatmateID string) error {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.SetManualMatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction.id", transactionID),
		attribute.String("flatmate.id", flatmateID),
	)

	flatmate, err := s.store.GetFlatmate(ctx, flatmateID)
	if err != nil {
		return fmt.Errorf("get flatmate: %w", err)
	}
	if !flatmate.Active {
		return &domain.ErrValidation{Field: "flatmate_id", Message: "flatmate is deactivated"}
	}

	if err := s.store.SetManualMatch(ctx, transactionID, flatmateID); err != nil {
		return fmt.Errorf("set manual match: %w", err)
	}

	s.logger.Info("manual match set",
		zap.String("transaction_id", transactionID),
		zap.String("flatmate_id", flatmateID),
	)
	return nil
}

// ClearManualMatch unpins a transaction. It goes back to unmatched; the
// next sync or rematch may auto-assign it again.
func (s *FlatmateService) ClearManualMatch(ctx context.Context, transactionID string) error {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.ClearManualMatch")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	if err := s.store.ClearManualMatch(ctx, transactionID); err != nil {
		return fmt.Errorf("clear manual match: %w", err)
	}

	s.logger.Info("manual match cleared", zap.String("transaction_id", transactionID))
	return nil
}

// ============================================================
// Transactions — /v1/transactions
// ============================================================

func (s *FlatmateService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.ListTransactions")
	defer span.End()

	transactions, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (s *FlatmateService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	ctx, span := flatmateTracer.Start(ctx, "FlatmateService.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	transaction, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return transaction, nil
}
