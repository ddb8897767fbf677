package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/storage"
)

type visaRequestRepository interface {
	Create(ctx context.Context, request *models.VisaRequest, steps []models.VisaStep, documents []models.VisaDocument) error
	ExistsOpen(ctx context.Context, studentID, destinationCountry string, visaType models.VisaType) (bool, error)
	FindByID(ctx context.Context, id string) (*models.VisaRequest, error)
	FindDetailByID(ctx context.Context, id string) (*models.VisaRequestDetail, error)
	List(ctx context.Context, filter models.VisaFilter) ([]models.VisaRequestDetail, int, error)
	FindDocument(ctx context.Context, requestID, name string) (*models.VisaDocument, error)
	Assign(ctx context.Context, id, consultantID string) (bool, error)
	UpdateDocumentReview(ctx context.Context, requestID, name string, status models.DocumentStatus, feedback *string) error
	UpdateDocumentFile(ctx context.Context, requestID, name, filePath string, uploadedAt time.Time) error
	AdvanceStep(ctx context.Context, requestID string, expectedStep int, notes *string, markCompleted bool) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.VisaStatus, cancellationReason *string) (bool, error)
}

type visaUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

// DocumentUpload carries one incoming file for a visa document slot.
type DocumentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// VisaConfig bundles document upload limits.
type VisaConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// VisaService implements the visa case workflow.
type VisaService struct {
	repo      visaRequestRepository
	users     visaUserRepository
	store     documentStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	config    VisaConfig
}

// NewVisaService constructs a VisaService instance.
func NewVisaService(repo visaRequestRepository, users visaUserRepository, store documentStore, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, config VisaConfig) *VisaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 8 << 20
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	return &VisaService{repo: repo, users: users, store: store, signer: signer, validator: validate, logger: logger, config: config}
}

// Create opens a new visa case for the student, instantiating the step and
// document checklist for the requested visa type.
func (s *VisaService) Create(ctx context.Context, claims *models.JWTClaims, payload models.CreateVisaRequestPayload) (*models.VisaRequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visa request payload")
	}
	if !payload.VisaType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown visa type %q", payload.VisaType))
	}

	template, ok := models.TemplateFor(payload.VisaType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no checklist template for visa type %q", payload.VisaType))
	}

	open, err := s.repo.ExistsOpen(ctx, claims.UserID, payload.DestinationCountry, payload.VisaType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an open request for this destination and visa type already exists")
	}

	request := &models.VisaRequest{
		StudentID:          claims.UserID,
		DestinationCountry: payload.DestinationCountry,
		VisaType:           payload.VisaType,
		Purpose:            payload.Purpose,
		Status:             models.VisaStatusPending,
	}
	steps := make([]models.VisaStep, 0, len(template.Steps))
	for i, st := range template.Steps {
		steps = append(steps, models.VisaStep{
			Position:          i,
			Name:              st.Name,
			Status:            models.StepStatusPending,
			RequiredDocuments: pq.StringArray(st.RequiredDocuments),
		})
	}
	documents := make([]models.VisaDocument, 0, len(template.Documents))
	for _, name := range template.Documents {
		documents = append(documents, models.VisaDocument{Name: name, Status: models.DocumentStatusPending})
	}

	if err := s.repo.Create(ctx, request, steps, documents); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create visa request")
	}

	detail := &models.VisaRequestDetail{
		VisaRequest: *request,
		StudentName: claims.FullName,
		Steps:       steps,
		Documents:   documents,
	}
	return detail, nil
}

// Get returns a case visible to the caller.
func (s *VisaService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.VisaRequestDetail, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(claims, &detail.VisaRequest); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns cases scoped to the caller's role.
func (s *VisaService) List(ctx context.Context, claims *models.JWTClaims, filter models.VisaFilter) ([]models.VisaRequestDetail, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleEmployee:
		filter.ConsultantID = claims.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visa requests")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Assign hands a pending case to a consultant and moves it to assigned.
func (s *VisaService) Assign(ctx context.Context, claims *models.JWTClaims, id string, payload models.AssignVisaRequestPayload) (*models.VisaRequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	consultant, err := s.users.FindByID(ctx, payload.ConsultantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consultant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultant")
	}
	if consultant.Role != models.RoleEmployee || !consultant.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee must be an active employee")
	}

	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	assigned, err := s.repo.Assign(ctx, id, payload.ConsultantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign consultant")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
	}

	s.audit(ctx, claims, models.AuditActionVisaAssign, id, fmt.Sprintf(`{"consultant_id":%q}`, payload.ConsultantID))
	return s.loadDetail(ctx, id)
}

// ReviewDocument records approval or rejection of an uploaded document.
// Rejection requires feedback; approval discards any previous feedback.
func (s *VisaService) ReviewDocument(ctx context.Context, claims *models.JWTClaims, requestID, docName string, payload models.ReviewDocumentPayload) (*models.VisaDocument, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaseWork(claims, request); err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	document, err := s.loadDocument(ctx, requestID, docName)
	if err != nil {
		return nil, err
	}
	if document.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document has no uploaded file to review")
	}

	feedback := payload.Feedback
	if payload.Status == models.DocumentStatusRejected {
		if feedback == nil || strings.TrimSpace(*feedback) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires feedback")
		}
	} else {
		feedback = nil
	}

	if err := s.repo.UpdateDocumentReview(ctx, requestID, docName, payload.Status, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document review")
	}

	s.audit(ctx, claims, models.AuditActionVisaDocReview, requestID, fmt.Sprintf(`{"document":%q,"status":%q}`, docName, payload.Status))
	return s.loadDocument(ctx, requestID, docName)
}

// UploadDocument stores a student's file for a document slot and resets the
// slot to pending review.
func (s *VisaService) UploadDocument(ctx context.Context, claims *models.JWTClaims, requestID, docName string, upload DocumentUpload) (*models.VisaDocument, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleStudent && request.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	if upload.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(upload.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not accepted", upload.ContentType))
	}

	document, err := s.loadDocument(ctx, requestID, docName)
	if err != nil {
		return nil, err
	}
	if document.Status == models.DocumentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "document is already approved")
	}

	relPath := documentPath(requestID, docName, upload.ContentType, upload.Filename)
	limited := io.LimitReader(upload.Reader, s.config.MaxFileSizeBytes+1)
	if _, err := s.store.SaveStream(relPath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateDocumentFile(ctx, requestID, docName, relPath, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document upload")
	}

	s.audit(ctx, claims, models.AuditActionVisaDocUpload, requestID, fmt.Sprintf(`{"document":%q}`, docName))
	return s.loadDocument(ctx, requestID, docName)
}

// CompleteStep finishes the named step. Steps complete strictly in order:
// the named step must be the case's current step and all of its required
// documents must be approved. Completing the last step closes the case.
func (s *VisaService) CompleteStep(ctx context.Context, claims *models.JWTClaims, requestID string, payload models.CompleteStepPayload) (*models.VisaRequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step payload")
	}

	detail, err := s.loadDetail(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaseWork(claims, &detail.VisaRequest); err != nil {
		return nil, err
	}
	if detail.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	var step *models.VisaStep
	for i := range detail.Steps {
		if detail.Steps[i].Name == payload.Name {
			step = &detail.Steps[i]
			break
		}
	}
	if step == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("step %q not found", payload.Name))
	}
	if step.Status == models.StepStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("step %q is already completed", payload.Name))
	}
	if step.Position != detail.CurrentStep {
		return nil, appErrors.Clone(appErrors.ErrStepOutOfOrder, fmt.Sprintf("current step is %q", detail.CurrentStepName()))
	}

	approved := make(map[string]bool, len(detail.Documents))
	for _, doc := range detail.Documents {
		approved[doc.Name] = doc.Status == models.DocumentStatusApproved
	}
	for _, name := range step.RequiredDocuments {
		if !approved[name] {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("document %q is not approved yet", name))
		}
	}

	final := step.Position == len(detail.Steps)-1
	advanced, err := s.repo.AdvanceStep(ctx, requestID, step.Position, payload.Notes, final)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance step")
	}
	if !advanced {
		return nil, appErrors.Clone(appErrors.ErrStepOutOfOrder, "the case moved while processing, reload and retry")
	}

	s.audit(ctx, claims, models.AuditActionVisaStepUpdate, requestID, fmt.Sprintf(`{"step":%q}`, payload.Name))
	return s.loadDetail(ctx, requestID)
}

// Decide records the embassy outcome for the case.
func (s *VisaService) Decide(ctx context.Context, claims *models.JWTClaims, requestID string, payload models.VisaDecisionPayload) (*models.VisaRequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if payload.Outcome != models.VisaStatusApproved && payload.Outcome != models.VisaStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be approved or rejected")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCaseWork(claims, request); err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}
	if request.AssignedConsultantID == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "case has no assigned consultant")
	}

	updated, err := s.repo.UpdateStatus(ctx, requestID, payload.Outcome, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	s.audit(ctx, claims, models.AuditActionVisaDecision, requestID, fmt.Sprintf(`{"outcome":%q}`, payload.Outcome))
	return s.loadDetail(ctx, requestID)
}

// Cancel withdraws a case with a stated reason.
func (s *VisaService) Cancel(ctx context.Context, claims *models.JWTClaims, requestID string, payload models.CancelVisaRequestPayload) (*models.VisaRequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancellation payload")
	}
	if strings.TrimSpace(payload.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation reason is required")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	switch claims.Role {
	case models.RoleStudent:
		if request.StudentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
		}
	default:
		if err := s.authorizeCaseWork(claims, request); err != nil {
			return nil, err
		}
	}

	reason := payload.Reason
	updated, err := s.repo.UpdateStatus(ctx, requestID, models.VisaStatusCancelled, &reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrTerminalRequest, "")
	}

	s.audit(ctx, claims, models.AuditActionVisaCancel, requestID, fmt.Sprintf(`{"reason":%q}`, payload.Reason))
	return s.loadDetail(ctx, requestID)
}

// DocumentDownloadLink issues a signed short-lived token for a document file.
func (s *VisaService) DocumentDownloadLink(ctx context.Context, claims *models.JWTClaims, requestID, docName string) (*models.DocumentDownloadLink, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(claims, request); err != nil {
		return nil, err
	}

	document, err := s.loadDocument(ctx, requestID, docName)
	if err != nil {
		return nil, err
	}
	if document.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document has no uploaded file")
	}

	token, expiresAt, err := s.signer.Generate(requestID, *document.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return &models.DocumentDownloadLink{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenDocument validates a signed token and opens the referenced file.
func (s *VisaService) OpenDocument(ctx context.Context, token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file no longer available")
	}
	return file, filepath.Base(relPath), nil
}

func (s *VisaService) loadRequest(ctx context.Context, id string) (*models.VisaRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visa request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visa request")
	}
	return request, nil
}

func (s *VisaService) loadDetail(ctx context.Context, id string) (*models.VisaRequestDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visa request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visa request")
	}
	return detail, nil
}

func (s *VisaService) loadDocument(ctx context.Context, requestID, name string) (*models.VisaDocument, error) {
	document, err := s.repo.FindDocument(ctx, requestID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("document %q not found", name))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return document, nil
}

func (s *VisaService) authorizeView(claims *models.JWTClaims, request *models.VisaRequest) error {
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleEmployee:
		if request.AssignedConsultantID != nil && *request.AssignedConsultantID == claims.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "case is not assigned to you")
	case models.RoleStudent:
		if request.StudentID == claims.UserID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

func (s *VisaService) authorizeCaseWork(claims *models.JWTClaims, request *models.VisaRequest) error {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	if claims.Role == models.RoleEmployee && request.AssignedConsultantID != nil && *request.AssignedConsultantID == claims.UserID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "case is not assigned to you")
}

func (s *VisaService) mimeAllowed(contentType string) bool {
	base := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		base = parsed
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, base) {
			return true
		}
	}
	return false
}

func (s *VisaService) audit(ctx context.Context, claims *models.JWTClaims, action, requestID, payload string) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "visa_request",
		ResourceID: &requestID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func documentPath(requestID, docName, contentType, filename string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(docName), " ", "_"))
	ext := filepath.Ext(filename)
	if ext == "" {
		switch {
		case strings.Contains(contentType, "pdf"):
			ext = ".pdf"
		case strings.Contains(contentType, "jpeg"):
			ext = ".jpg"
		case strings.Contains(contentType, "png"):
			ext = ".png"
		}
	}
	return filepath.Join("visa", requestID, slug+ext)
}
