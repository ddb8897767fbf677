package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

type consultationRepository interface {
	Create(ctx context.Context, consultation *models.Consultation) error
	FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error)
	List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error)
	Assign(ctx context.Context, id, employeeID string, scheduledAt *time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.ConsultationStatus, cancellationReason *string) (bool, error)
}

type consultationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateConsultationPayload opens a new consultation request.
type CreateConsultationPayload struct {
	Topic   string `json:"topic" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// AssignConsultationPayload hands a consultation to an employee.
type AssignConsultationPayload struct {
	EmployeeID  string     `json:"employee_id" validate:"required"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// CancelConsultationPayload withdraws a consultation with a stated reason.
type CancelConsultationPayload struct {
	Reason string `json:"reason" validate:"required"`
}

// ConsultationService implements the consultation workflow.
type ConsultationService struct {
	repo      consultationRepository
	users     consultationUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConsultationService constructs a ConsultationService instance.
func NewConsultationService(repo consultationRepository, users consultationUserRepository, validate *validator.Validate, logger *zap.Logger) *ConsultationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConsultationService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create opens a consultation for the calling student.
func (s *ConsultationService) Create(ctx context.Context, claims *models.JWTClaims, payload CreateConsultationPayload) (*models.ConsultationDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consultation payload")
	}

	consultation := &models.Consultation{
		StudentID: claims.UserID,
		Topic:     payload.Topic,
		Message:   payload.Message,
		Status:    models.ConsultationStatusPending,
	}
	if err := s.repo.Create(ctx, consultation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create consultation")
	}

	return &models.ConsultationDetail{Consultation: *consultation, StudentName: claims.FullName}, nil
}

// Get returns a consultation visible to the caller.
func (s *ConsultationService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.ConsultationDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(claims, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns consultations scoped to the caller's role.
func (s *ConsultationService) List(ctx context.Context, claims *models.JWTClaims, filter models.ConsultationFilter) ([]models.ConsultationDetail, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleEmployee:
		filter.EmployeeID = claims.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	consultations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list consultations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return consultations, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Assign hands a pending consultation to an employee.
func (s *ConsultationService) Assign(ctx context.Context, claims *models.JWTClaims, id string, payload AssignConsultationPayload) (*models.ConsultationDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	employee, err := s.users.FindByID(ctx, payload.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if employee.Role != models.RoleEmployee || !employee.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must be an active employee")
	}

	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "consultation is completed or cancelled")
	}

	assigned, err := s.repo.Assign(ctx, id, payload.EmployeeID, payload.ScheduledAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign consultation")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "consultation is no longer pending")
	}

	s.audit(ctx, claims, models.AuditActionConsultAssign, id, fmt.Sprintf(`{"employee_id":%q}`, payload.EmployeeID))
	return s.load(ctx, id)
}

// Complete marks an assigned consultation as completed.
func (s *ConsultationService) Complete(ctx context.Context, claims *models.JWTClaims, id string) (*models.ConsultationDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleEmployee && (detail.EmployeeID == nil || *detail.EmployeeID != claims.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation is not assigned to you")
	}
	if detail.Status != models.ConsultationStatusAssigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only assigned consultations can be completed")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, models.ConsultationStatusCompleted, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete consultation")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "consultation is completed or cancelled")
	}

	s.audit(ctx, claims, models.AuditActionConsultComplete, id, `{"status":"completed"}`)
	return s.load(ctx, id)
}

// Cancel withdraws a consultation with a stated reason.
func (s *ConsultationService) Cancel(ctx context.Context, claims *models.JWTClaims, id string, payload CancelConsultationPayload) (*models.ConsultationDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}

	if strings.TrimSpace(payload.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason is required")
	}

	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		if detail.StudentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another student")
		}
	case models.RoleEmployee:
		if detail.EmployeeID == nil || *detail.EmployeeID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "consultation is not assigned to you")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	reason := payload.Reason
	updated, err := s.repo.UpdateStatus(ctx, id, models.ConsultationStatusCancelled, &reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel consultation")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "consultation is completed or cancelled")
	}

	s.audit(ctx, claims, models.AuditActionConsultCancel, id, fmt.Sprintf(`{"reason":%q}`, payload.Reason))
	return s.load(ctx, id)
}

func (s *ConsultationService) load(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultation")
	}
	return detail, nil
}

func (s *ConsultationService) authorize(claims *models.JWTClaims, detail *models.ConsultationDetail) error {
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleEmployee:
		if detail.EmployeeID != nil && *detail.EmployeeID == claims.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "consultation is not assigned to you")
	case models.RoleStudent:
		if detail.StudentID == claims.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "consultation belongs to another student")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

func (s *ConsultationService) audit(ctx context.Context, claims *models.JWTClaims, action, id, payload string) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "consultation",
		ResourceID: &id,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
