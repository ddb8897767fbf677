package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/storage"
)

type visaRepoStub struct {
	mu         sync.Mutex
	request    *models.VisaRequest
	steps      []models.VisaStep
	documents  []models.VisaDocument
	openExists bool
}

func (s *visaRepoStub) Create(ctx context.Context, request *models.VisaRequest, steps []models.VisaStep, documents []models.VisaDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = "req-1"
	}
	s.request = request
	s.steps = steps
	s.documents = documents
	return nil
}

func (s *visaRepoStub) ExistsOpen(ctx context.Context, studentID, destinationCountry string, visaType models.VisaType) (bool, error) {
	return s.openExists, nil
}

func (s *visaRepoStub) FindByID(ctx context.Context, id string) (*models.VisaRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil || s.request.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.request
	return &copied, nil
}

func (s *visaRepoStub) FindDetailByID(ctx context.Context, id string) (*models.VisaRequestDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request == nil || s.request.ID != id {
		return nil, sql.ErrNoRows
	}
	detail := &models.VisaRequestDetail{
		VisaRequest: *s.request,
		StudentName: "Student One",
		Steps:       append([]models.VisaStep(nil), s.steps...),
		Documents:   append([]models.VisaDocument(nil), s.documents...),
	}
	return detail, nil
}

func (s *visaRepoStub) List(ctx context.Context, filter models.VisaFilter) ([]models.VisaRequestDetail, int, error) {
	detail, err := s.FindDetailByID(ctx, s.request.ID)
	if err != nil {
		return nil, 0, nil
	}
	return []models.VisaRequestDetail{*detail}, 1, nil
}

func (s *visaRepoStub) FindDocument(ctx context.Context, requestID, name string) (*models.VisaDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].Name == name {
			copied := s.documents[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *visaRepoStub) Assign(ctx context.Context, id, consultantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request.Status != models.VisaStatusPending {
		return false, nil
	}
	s.request.AssignedConsultantID = &consultantID
	s.request.Status = models.VisaStatusAssigned
	return true, nil
}

func (s *visaRepoStub) UpdateDocumentReview(ctx context.Context, requestID, name string, status models.DocumentStatus, feedback *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].Name == name {
			s.documents[i].Status = status
			s.documents[i].Feedback = feedback
		}
	}
	return nil
}

func (s *visaRepoStub) UpdateDocumentFile(ctx context.Context, requestID, name, filePath string, uploadedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].Name == name {
			s.documents[i].Status = models.DocumentStatusPending
			s.documents[i].FilePath = &filePath
			s.documents[i].UploadedAt = &uploadedAt
		}
	}
	return nil
}

func (s *visaRepoStub) AdvanceStep(ctx context.Context, requestID string, expectedStep int, notes *string, markCompleted bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request.Status.Terminal() || s.request.CurrentStep != expectedStep {
		return false, nil
	}
	s.request.CurrentStep++
	s.steps[expectedStep].Status = models.StepStatusCompleted
	if markCompleted {
		s.request.Status = models.VisaStatusCompleted
	}
	return true, nil
}

func (s *visaRepoStub) UpdateStatus(ctx context.Context, id string, status models.VisaStatus, cancellationReason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.request.Status.Terminal() {
		return false, nil
	}
	s.request.Status = status
	s.request.CancellationReason = cancellationReason
	return true, nil
}

type visaUserStub struct {
	mu    sync.Mutex
	users map[string]*models.User
	logs  []*models.AuditLog
}

func (s *visaUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *visaUserStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, FullName: "Student One"}
}

func consultantClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "employee-1", Role: models.RoleEmployee, FullName: "Employee One"}
}

func newVisaCase(status models.VisaStatus, currentStep int) *visaRepoStub {
	template, _ := models.TemplateFor(models.VisaTypeStudent)
	consultantID := "employee-1"
	stub := &visaRepoStub{
		request: &models.VisaRequest{
			ID:                   "req-1",
			StudentID:            "student-1",
			DestinationCountry:   "Canada",
			VisaType:             models.VisaTypeStudent,
			Status:               status,
			AssignedConsultantID: &consultantID,
			CurrentStep:          currentStep,
		},
	}
	for i, st := range template.Steps {
		stepStatus := models.StepStatusPending
		if i < currentStep {
			stepStatus = models.StepStatusCompleted
		}
		stub.steps = append(stub.steps, models.VisaStep{
			Position:          i,
			Name:              st.Name,
			Status:            stepStatus,
			RequiredDocuments: pq.StringArray(st.RequiredDocuments),
		})
	}
	path := "visa/req-1/file.pdf"
	for _, name := range template.Documents {
		stub.documents = append(stub.documents, models.VisaDocument{
			Name:     name,
			Status:   models.DocumentStatusApproved,
			FilePath: &path,
		})
	}
	return stub
}

func newVisaService(t *testing.T, repo *visaRepoStub, users *visaUserStub) *VisaService {
	t.Helper()
	if users == nil {
		users = &visaUserStub{}
	}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	return NewVisaService(repo, users, store, signer, validator.New(), nil, VisaConfig{})
}

func TestVisaServiceCreateInstantiatesChecklist(t *testing.T) {
	repo := &visaRepoStub{}
	service := newVisaService(t, repo, nil)

	detail, err := service.Create(context.Background(), studentClaims(), models.CreateVisaRequestPayload{
		DestinationCountry: "Canada",
		VisaType:           models.VisaTypeStudent,
		Purpose:            "masters program",
	})
	require.NoError(t, err)

	template, _ := models.TemplateFor(models.VisaTypeStudent)
	assert.Equal(t, models.VisaStatusPending, detail.Status)
	assert.Equal(t, 0, detail.CurrentStep)
	require.Len(t, detail.Steps, len(template.Steps))
	require.Len(t, detail.Documents, len(template.Documents))
	for _, step := range detail.Steps {
		assert.Equal(t, models.StepStatusPending, step.Status)
	}
	for _, doc := range detail.Documents {
		assert.Equal(t, models.DocumentStatusPending, doc.Status)
		assert.Nil(t, doc.FilePath)
	}
}

func TestVisaServiceCreateRejectsDuplicateOpenRequest(t *testing.T) {
	repo := &visaRepoStub{openExists: true}
	service := newVisaService(t, repo, nil)

	_, err := service.Create(context.Background(), studentClaims(), models.CreateVisaRequestPayload{
		DestinationCountry: "Canada",
		VisaType:           models.VisaTypeStudent,
		Purpose:            "masters program",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceCreateRejectsUnknownVisaType(t *testing.T) {
	service := newVisaService(t, &visaRepoStub{}, nil)

	_, err := service.Create(context.Background(), studentClaims(), models.CreateVisaRequestPayload{
		DestinationCountry: "Canada",
		VisaType:           "business",
		Purpose:            "meetings",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceCompleteStepOutOfOrder(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
		Name: "Embassy Submission",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStepOutOfOrder.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.request.CurrentStep)
	assert.Equal(t, models.StepStatusPending, repo.steps[2].Status)
}

func TestVisaServiceCompleteStepAlreadyCompleted(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 2)
	service := newVisaService(t, repo, nil)

	_, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
		Name: "Document Review",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, repo.request.CurrentStep)
}

func TestVisaServiceCompleteStepRequiresApprovedDocuments(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	repo.documents[0].Status = models.DocumentStatusPending
	service := newVisaService(t, repo, nil)

	_, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
		Name: "Document Review",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.request.CurrentStep)
}

func TestVisaServiceCompleteStepAdvances(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	detail, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
		Name: "Document Review",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, detail.CurrentStep)
	assert.Equal(t, models.StepStatusCompleted, detail.Steps[0].Status)
	assert.Equal(t, models.VisaStatusAssigned, detail.Status)
}

func TestVisaServiceCompleteFinalStepClosesCase(t *testing.T) {
	repo := newVisaCase(models.VisaStatusApproved, 4)
	service := newVisaService(t, repo, nil)

	detail, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
		Name: "Visa Decision",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusCompleted, detail.Status)
	assert.Equal(t, 5, detail.CurrentStep)
}

func TestVisaServiceCompleteStepConcurrent(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 1)
	service := newVisaService(t, repo, nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{
				Name: "Financial Verification",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		code := appErrors.FromError(err).Code
		if code == appErrors.ErrStepOutOfOrder.Code || code == appErrors.ErrConflict.Code {
			conflicted++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 2, repo.request.CurrentStep)
}

func TestVisaServiceTerminalGuards(t *testing.T) {
	repo := newVisaCase(models.VisaStatusCancelled, 1)
	service := newVisaService(t, repo, nil)

	_, err := service.CompleteStep(context.Background(), consultantClaims(), "req-1", models.CompleteStepPayload{Name: "Financial Verification"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalRequest.Code, appErrors.FromError(err).Code)

	feedback := "blurry scan"
	_, err = service.ReviewDocument(context.Background(), consultantClaims(), "req-1", "Passport", models.ReviewDocumentPayload{
		Status:   models.DocumentStatusRejected,
		Feedback: &feedback,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalRequest.Code, appErrors.FromError(err).Code)

	_, err = service.UploadDocument(context.Background(), studentClaims(), "req-1", "Passport", DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Reader:      bytes.NewReader([]byte("pdf")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalRequest.Code, appErrors.FromError(err).Code)

	_, err = service.Cancel(context.Background(), studentClaims(), "req-1", models.CancelVisaRequestPayload{Reason: "changed plans"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTerminalRequest.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceRejectDocumentRequiresFeedback(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, err := service.ReviewDocument(context.Background(), consultantClaims(), "req-1", "Passport", models.ReviewDocumentPayload{
		Status: models.DocumentStatusRejected,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceApproveDocumentClearsFeedback(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	feedback := "blurry scan"
	repo.documents[0].Status = models.DocumentStatusRejected
	repo.documents[0].Feedback = &feedback
	service := newVisaService(t, repo, nil)

	ignored := "should be discarded"
	doc, err := service.ReviewDocument(context.Background(), consultantClaims(), "req-1", repo.documents[0].Name, models.ReviewDocumentPayload{
		Status:   models.DocumentStatusApproved,
		Feedback: &ignored,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusApproved, doc.Status)
	assert.Nil(t, doc.Feedback)
}

func TestVisaServiceReviewRequiresUploadedFile(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	repo.documents[0].FilePath = nil
	service := newVisaService(t, repo, nil)

	feedback := "missing pages"
	_, err := service.ReviewDocument(context.Background(), consultantClaims(), "req-1", repo.documents[0].Name, models.ReviewDocumentPayload{
		Status:   models.DocumentStatusRejected,
		Feedback: &feedback,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceUploadValidation(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, err := service.UploadDocument(context.Background(), studentClaims(), "req-1", "Passport", DocumentUpload{
		Filename:    "passport.exe",
		ContentType: "application/octet-stream",
		Size:        100,
		Reader:      bytes.NewReader([]byte("bin")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = service.UploadDocument(context.Background(), studentClaims(), "req-1", "Passport", DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        (8 << 20) + 1,
		Reader:      bytes.NewReader([]byte("pdf")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceUploadResetsReviewState(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	feedback := "blurry scan"
	repo.documents[0].Status = models.DocumentStatusRejected
	repo.documents[0].Feedback = &feedback
	service := newVisaService(t, repo, nil)

	doc, err := service.UploadDocument(context.Background(), studentClaims(), "req-1", repo.documents[0].Name, DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Reader:      bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, doc.Status)
	require.NotNil(t, doc.FilePath)
	assert.Contains(t, *doc.FilePath, "req-1")
}

func TestVisaServiceUploadForbidsOtherStudents(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	other := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}
	_, err := service.UploadDocument(context.Background(), other, "req-1", "Passport", DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Reader:      bytes.NewReader([]byte("pdf")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceUploadOverApprovedConflict(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, err := service.UploadDocument(context.Background(), studentClaims(), "req-1", "Passport", DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Reader:      bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.DocumentStatusApproved, repo.documents[0].Status)
}

func TestVisaServiceAssignValidatesConsultant(t *testing.T) {
	repo := newVisaCase(models.VisaStatusPending, 0)
	repo.request.AssignedConsultantID = nil
	users := &visaUserStub{users: map[string]*models.User{
		"student-9":  {ID: "student-9", Role: models.RoleStudent, Active: true},
		"employee-1": {ID: "employee-1", Role: models.RoleEmployee, Active: true},
	}}
	service := newVisaService(t, repo, users)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := service.Assign(context.Background(), admin, "req-1", models.AssignVisaRequestPayload{ConsultantID: "student-9"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	detail, err := service.Assign(context.Background(), admin, "req-1", models.AssignVisaRequestPayload{ConsultantID: "employee-1"})
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusAssigned, detail.Status)
	require.NotEmpty(t, users.logs)
	assert.Equal(t, models.AuditActionVisaAssign, users.logs[0].Action)
}

func TestVisaServiceDecideRequiresAssignedConsultant(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 4)
	repo.request.AssignedConsultantID = nil
	service := newVisaService(t, repo, nil)
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := service.Decide(context.Background(), admin, "req-1", models.VisaDecisionPayload{Outcome: models.VisaStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceDecideRecordsOutcome(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 4)
	service := newVisaService(t, repo, nil)

	detail, err := service.Decide(context.Background(), consultantClaims(), "req-1", models.VisaDecisionPayload{Outcome: models.VisaStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusApproved, detail.Status)
}

func TestVisaServiceCancelStoresReason(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 1)
	service := newVisaService(t, repo, nil)

	detail, err := service.Cancel(context.Background(), studentClaims(), "req-1", models.CancelVisaRequestPayload{Reason: "changed plans"})
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusCancelled, detail.Status)
	require.NotNil(t, detail.CancellationReason)
	assert.Equal(t, "changed plans", *detail.CancellationReason)
}

func TestVisaServiceCancelRejectsBlankReason(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 1)
	service := newVisaService(t, repo, nil)

	_, err := service.Cancel(context.Background(), studentClaims(), "req-1", models.CancelVisaRequestPayload{Reason: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.VisaStatusAssigned, repo.request.Status)
}

func TestVisaServiceCancelAuthorization(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 1)
	service := newVisaService(t, repo, nil)

	payload := models.CancelVisaRequestPayload{Reason: "duplicate case"}

	teacher := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, err := service.Cancel(context.Background(), teacher, "req-1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	other := &models.JWTClaims{UserID: "employee-2", Role: models.RoleEmployee}
	_, err = service.Cancel(context.Background(), other, "req-1", payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.VisaStatusAssigned, repo.request.Status)

	detail, err := service.Cancel(context.Background(), consultantClaims(), "req-1", payload)
	require.NoError(t, err)
	assert.Equal(t, models.VisaStatusCancelled, detail.Status)
}

func TestVisaServiceDownloadRoundTrip(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	repo.documents[0].Status = models.DocumentStatusPending
	service := newVisaService(t, repo, nil)

	uploaded, err := service.UploadDocument(context.Background(), studentClaims(), "req-1", "Passport", DocumentUpload{
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Reader:      bytes.NewReader([]byte("%PDF-1.4")),
	})
	require.NoError(t, err)
	require.NotNil(t, uploaded.FilePath)

	link, err := service.DocumentDownloadLink(context.Background(), studentClaims(), "req-1", "Passport")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	file, name, err := service.OpenDocument(context.Background(), link.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "passport.pdf", name)
}

func TestVisaServiceListScopesByRole(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, pagination, err := service.List(context.Background(), studentClaims(), models.VisaFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
}

func TestVisaServiceListForbidsOtherRoles(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	teacher := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, _, err := service.List(context.Background(), teacher, models.VisaFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceGetForbidsUnassignedConsultant(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	other := &models.JWTClaims{UserID: "employee-2", Role: models.RoleEmployee}
	_, err := service.Get(context.Background(), other, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestVisaServiceGetNotFound(t *testing.T) {
	repo := newVisaCase(models.VisaStatusAssigned, 0)
	service := newVisaService(t, repo, nil)

	_, err := service.Get(context.Background(), studentClaims(), fmt.Sprintf("req-%d", 99))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
