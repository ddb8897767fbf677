package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

type consultationRepoStub struct {
	mu           sync.Mutex
	consultation *models.Consultation
}

func (s *consultationRepoStub) Create(ctx context.Context, consultation *models.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if consultation.ID == "" {
		consultation.ID = "cons-1"
	}
	s.consultation = consultation
	return nil
}

func (s *consultationRepoStub) FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consultation == nil || s.consultation.ID != id {
		return nil, sql.ErrNoRows
	}
	return &models.ConsultationDetail{Consultation: *s.consultation, StudentName: "Student One"}, nil
}

func (s *consultationRepoStub) List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error) {
	detail, err := s.FindByID(ctx, s.consultation.ID)
	if err != nil {
		return nil, 0, nil
	}
	return []models.ConsultationDetail{*detail}, 1, nil
}

func (s *consultationRepoStub) Assign(ctx context.Context, id, employeeID string, scheduledAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consultation.Status != models.ConsultationStatusPending {
		return false, nil
	}
	s.consultation.EmployeeID = &employeeID
	s.consultation.ScheduledAt = scheduledAt
	s.consultation.Status = models.ConsultationStatusAssigned
	return true, nil
}

func (s *consultationRepoStub) UpdateStatus(ctx context.Context, id string, status models.ConsultationStatus, cancellationReason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consultation.Status.Terminal() {
		return false, nil
	}
	s.consultation.Status = status
	s.consultation.CancellationReason = cancellationReason
	return true, nil
}

func newConsultation(status models.ConsultationStatus) *consultationRepoStub {
	employeeID := "employee-1"
	stub := &consultationRepoStub{
		consultation: &models.Consultation{
			ID:        "cons-1",
			StudentID: "student-1",
			Topic:     "IELTS preparation",
			Message:   "need guidance",
			Status:    status,
		},
	}
	if status != models.ConsultationStatusPending {
		stub.consultation.EmployeeID = &employeeID
	}
	return stub
}

func newConsultationService(repo *consultationRepoStub, users *visaUserStub) *ConsultationService {
	if users == nil {
		users = &visaUserStub{users: map[string]*models.User{
			"employee-1": {ID: "employee-1", Role: models.RoleEmployee, Active: true},
		}}
	}
	return NewConsultationService(repo, users, validator.New(), nil)
}

func TestConsultationServiceCreate(t *testing.T) {
	repo := &consultationRepoStub{}
	service := newConsultationService(repo, nil)

	detail, err := service.Create(context.Background(), studentClaims(), CreateConsultationPayload{
		Topic:   "IELTS preparation",
		Message: "need guidance on band requirements",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusPending, detail.Status)
	assert.Equal(t, "student-1", detail.StudentID)
}

func TestConsultationServiceAssignLifecycle(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusPending)
	service := newConsultationService(repo, nil)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	when := time.Now().Add(24 * time.Hour)
	detail, err := service.Assign(context.Background(), admin, "cons-1", AssignConsultationPayload{
		EmployeeID:  "employee-1",
		ScheduledAt: &when,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusAssigned, detail.Status)
	require.NotNil(t, detail.EmployeeID)

	_, err = service.Assign(context.Background(), admin, "cons-1", AssignConsultationPayload{EmployeeID: "employee-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestConsultationServiceCompleteOnlyAssigned(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusPending)
	service := newConsultationService(repo, nil)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := service.Complete(context.Background(), admin, "cons-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.consultation.Status = models.ConsultationStatusAssigned
	detail, err := service.Complete(context.Background(), admin, "cons-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusCompleted, detail.Status)
}

func TestConsultationServiceCompleteForbidsOtherEmployee(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusAssigned)
	service := newConsultationService(repo, nil)

	other := &models.JWTClaims{UserID: "employee-2", Role: models.RoleEmployee}
	_, err := service.Complete(context.Background(), other, "cons-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestConsultationServiceCancelGuardsTerminal(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusCompleted)
	service := newConsultationService(repo, nil)

	_, err := service.Cancel(context.Background(), studentClaims(), "cons-1", CancelConsultationPayload{Reason: "no longer needed"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalRequest.Code, appErrors.FromError(err).Code)
}

func TestConsultationServiceCancelStoresReason(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusAssigned)
	service := newConsultationService(repo, nil)

	detail, err := service.Cancel(context.Background(), studentClaims(), "cons-1", CancelConsultationPayload{Reason: "found another agency"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusCancelled, detail.Status)
	require.NotNil(t, detail.CancellationReason)
	assert.Equal(t, "found another agency", *detail.CancellationReason)
}

func TestConsultationServiceCancelAuthorization(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusAssigned)
	service := newConsultationService(repo, nil)

	payload := CancelConsultationPayload{Reason: "scheduling conflict"}

	teacher := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, err := service.Cancel(context.Background(), teacher, "cons-1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	other := &models.JWTClaims{UserID: "employee-2", Role: models.RoleEmployee}
	_, err = service.Cancel(context.Background(), other, "cons-1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.ConsultationStatusAssigned, repo.consultation.Status)

	detail, err := service.Cancel(context.Background(), consultantClaims(), "cons-1", payload)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationStatusCancelled, detail.Status)
}

func TestConsultationServiceCancelRejectsBlankReason(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusAssigned)
	service := newConsultationService(repo, nil)

	_, err := service.Cancel(context.Background(), studentClaims(), "cons-1", CancelConsultationPayload{Reason: "  "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.ConsultationStatusAssigned, repo.consultation.Status)
}

func TestConsultationServiceListForbidsOtherRoles(t *testing.T) {
	repo := newConsultation(models.ConsultationStatusAssigned)
	service := newConsultationService(repo, nil)

	teacher := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, _, err := service.List(context.Background(), teacher, models.ConsultationFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
