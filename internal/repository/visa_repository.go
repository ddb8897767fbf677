package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
)

// VisaRepository handles persistence of visa requests and their child records.
type VisaRepository struct {
	db *sqlx.DB
}

// NewVisaRepository constructs the repository.
func NewVisaRepository(db *sqlx.DB) *VisaRepository {
	return &VisaRepository{db: db}
}

// Create persists a request together with its templated steps and documents.
func (r *VisaRepository) Create(ctx context.Context, request *models.VisaRequest, steps []models.VisaStep, documents []models.VisaDocument) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.VisaStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create visa request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const requestQuery = `INSERT INTO visa_requests (id, student_id, destination_country, visa_type, purpose, status, assigned_consultant_id, current_step, cancellation_reason, created_at, updated_at)
VALUES (:id, :student_id, :destination_country, :visa_type, :purpose, :status, :assigned_consultant_id, :current_step, :cancellation_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, requestQuery, request); err != nil {
		return fmt.Errorf("create visa request: %w", err)
	}

	const stepQuery = `INSERT INTO visa_steps (id, request_id, position, name, status, notes, required_documents, completed_at)
VALUES (:id, :request_id, :position, :name, :status, :notes, :required_documents, :completed_at)`
	for i := range steps {
		steps[i].RequestID = request.ID
		if steps[i].ID == "" {
			steps[i].ID = uuid.NewString()
		}
		if steps[i].Status == "" {
			steps[i].Status = models.StepStatusPending
		}
		if _, err := tx.NamedExecContext(ctx, stepQuery, steps[i]); err != nil {
			return fmt.Errorf("create visa step %q: %w", steps[i].Name, err)
		}
	}

	const documentQuery = `INSERT INTO visa_documents (id, request_id, name, status, file_path, feedback, uploaded_at, updated_at)
VALUES (:id, :request_id, :name, :status, :file_path, :feedback, :uploaded_at, :updated_at)`
	for i := range documents {
		documents[i].RequestID = request.ID
		if documents[i].ID == "" {
			documents[i].ID = uuid.NewString()
		}
		if documents[i].Status == "" {
			documents[i].Status = models.DocumentStatusPending
		}
		documents[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, documentQuery, documents[i]); err != nil {
			return fmt.Errorf("create visa document %q: %w", documents[i].Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create visa request: %w", err)
	}
	return nil
}

// ExistsOpen checks if a non-terminal request exists for the combination.
func (r *VisaRepository) ExistsOpen(ctx context.Context, studentID, destinationCountry string, visaType models.VisaType) (bool, error) {
	const query = `SELECT 1 FROM visa_requests WHERE student_id = $1 AND destination_country = $2 AND visa_type = $3 AND status NOT IN ($4, $5) LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, studentID, destinationCountry, visaType, models.VisaStatusCompleted, models.VisaStatusCancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open visa request: %w", err)
	}
	return true, nil
}

// FindByID returns a request by its ID.
func (r *VisaRepository) FindByID(ctx context.Context, id string) (*models.VisaRequest, error) {
	const query = `SELECT id, student_id, destination_country, visa_type, purpose, status, assigned_consultant_id, current_step, cancellation_reason, created_at, updated_at FROM visa_requests WHERE id = $1`
	var request models.VisaRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindDetailByID returns a request with steps, documents and actor names.
func (r *VisaRepository) FindDetailByID(ctx context.Context, id string) (*models.VisaRequestDetail, error) {
	const query = `SELECT v.id, v.student_id, v.destination_country, v.visa_type, v.purpose, v.status, v.assigned_consultant_id, v.current_step, v.cancellation_reason, v.created_at, v.updated_at,
        s.full_name AS student_name, c.full_name AS consultant_name
        FROM visa_requests v
        LEFT JOIN users s ON s.id = v.student_id
        LEFT JOIN users c ON c.id = v.assigned_consultant_id
        WHERE v.id = $1`
	var detail models.VisaRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	steps, err := r.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Steps = steps

	documents, err := r.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Documents = documents

	return &detail, nil
}

// List returns visa requests filtered by the provided criteria.
func (r *VisaRepository) List(ctx context.Context, filter models.VisaFilter) ([]models.VisaRequestDetail, int, error) {
	base := `FROM visa_requests v
LEFT JOIN users s ON s.id = v.student_id
LEFT JOIN users c ON c.id = v.assigned_consultant_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("v.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ConsultantID != "" {
		conditions = append(conditions, fmt.Sprintf("v.assigned_consultant_id = $%d", len(args)+1))
		args = append(args, filter.ConsultantID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("v.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.VisaType != "" {
		conditions = append(conditions, fmt.Sprintf("v.visa_type = $%d", len(args)+1))
		args = append(args, filter.VisaType)
	}
	if filter.DestinationCountry != "" {
		conditions = append(conditions, fmt.Sprintf("v.destination_country = $%d", len(args)+1))
		args = append(args, filter.DestinationCountry)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "v.created_at",
		"updated_at":   "v.updated_at",
		"status":       "v.status",
		"student_name": "s.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "v.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT v.id, v.student_id, v.destination_country, v.visa_type, v.purpose, v.status, v.assigned_consultant_id, v.current_step, v.cancellation_reason, v.created_at, v.updated_at,
        s.full_name AS student_name, c.full_name AS consultant_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var requests []models.VisaRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visa requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visa requests: %w", err)
	}
	return requests, total, nil
}

// ListSteps returns the ordered steps of a request.
func (r *VisaRepository) ListSteps(ctx context.Context, requestID string) ([]models.VisaStep, error) {
	const query = `SELECT id, request_id, position, name, status, notes, required_documents, completed_at FROM visa_steps WHERE request_id = $1 ORDER BY position ASC`
	var steps []models.VisaStep
	if err := r.db.SelectContext(ctx, &steps, query, requestID); err != nil {
		return nil, fmt.Errorf("list visa steps: %w", err)
	}
	return steps, nil
}

// ListDocuments returns the documents of a request.
func (r *VisaRepository) ListDocuments(ctx context.Context, requestID string) ([]models.VisaDocument, error) {
	const query = `SELECT id, request_id, name, status, file_path, feedback, uploaded_at, updated_at FROM visa_documents WHERE request_id = $1 ORDER BY name ASC`
	var documents []models.VisaDocument
	if err := r.db.SelectContext(ctx, &documents, query, requestID); err != nil {
		return nil, fmt.Errorf("list visa documents: %w", err)
	}
	return documents, nil
}

// FindDocument returns a single document of a request by name.
func (r *VisaRepository) FindDocument(ctx context.Context, requestID, name string) (*models.VisaDocument, error) {
	const query = `SELECT id, request_id, name, status, file_path, feedback, uploaded_at, updated_at FROM visa_documents WHERE request_id = $1 AND name = $2`
	var document models.VisaDocument
	if err := r.db.GetContext(ctx, &document, query, requestID, name); err != nil {
		return nil, err
	}
	return &document, nil
}

// Assign sets the consultant and moves a pending request to assigned.
// Returns false when the request was not pending anymore.
func (r *VisaRepository) Assign(ctx context.Context, id, consultantID string) (bool, error) {
	const query = `UPDATE visa_requests SET assigned_consultant_id = $2, status = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, consultantID, models.VisaStatusAssigned, time.Now().UTC(), models.VisaStatusPending)
	if err != nil {
		return false, fmt.Errorf("assign visa request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign visa request affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateDocumentReview stores the review outcome for a document.
func (r *VisaRepository) UpdateDocumentReview(ctx context.Context, requestID, name string, status models.DocumentStatus, feedback *string) error {
	const query = `UPDATE visa_documents SET status = $3, feedback = $4, updated_at = $5 WHERE request_id = $1 AND name = $2`
	if _, err := r.db.ExecContext(ctx, query, requestID, name, status, feedback, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document review: %w", err)
	}
	return nil
}

// UpdateDocumentFile stores a fresh upload and resets the document to pending review.
func (r *VisaRepository) UpdateDocumentFile(ctx context.Context, requestID, name, filePath string, uploadedAt time.Time) error {
	const query = `UPDATE visa_documents SET status = $3, file_path = $4, uploaded_at = $5, updated_at = $5 WHERE request_id = $1 AND name = $2`
	if _, err := r.db.ExecContext(ctx, query, requestID, name, models.DocumentStatusPending, filePath, uploadedAt); err != nil {
		return fmt.Errorf("update document file: %w", err)
	}
	return nil
}

// AdvanceStep atomically completes the step at expectedStep and increments
// current_step. The conditional WHERE on current_step guarantees that of two
// concurrent calls reading the same index, only one succeeds; the loser sees
// false. When markCompleted is set the request transitions to completed in
// the same transaction.
func (r *VisaRepository) AdvanceStep(ctx context.Context, requestID string, expectedStep int, notes *string, markCompleted bool) (bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin advance step: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const advanceQuery = `UPDATE visa_requests SET current_step = current_step + 1, updated_at = $3 WHERE id = $1 AND current_step = $2 AND status NOT IN ($4, $5)`
	res, err := tx.ExecContext(ctx, advanceQuery, requestID, expectedStep, now, models.VisaStatusCompleted, models.VisaStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("advance current step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance step affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	const stepQuery = `UPDATE visa_steps SET status = $3, notes = COALESCE($4, notes), completed_at = $5 WHERE request_id = $1 AND position = $2`
	if _, err := tx.ExecContext(ctx, stepQuery, requestID, expectedStep, models.StepStatusCompleted, notes, now); err != nil {
		return false, fmt.Errorf("complete step: %w", err)
	}

	if markCompleted {
		const completeQuery = `UPDATE visa_requests SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, completeQuery, requestID, models.VisaStatusCompleted, now); err != nil {
			return false, fmt.Errorf("complete visa request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit advance step: %w", err)
	}
	return true, nil
}

// UpdateStatus transitions a non-terminal request to the given status.
// Returns false when the request was already terminal.
func (r *VisaRepository) UpdateStatus(ctx context.Context, id string, status models.VisaStatus, cancellationReason *string) (bool, error) {
	const query = `UPDATE visa_requests SET status = $2, cancellation_reason = $3, updated_at = $4 WHERE id = $1 AND status NOT IN ($5, $6)`
	res, err := r.db.ExecContext(ctx, query, id, status, cancellationReason, time.Now().UTC(), models.VisaStatusCompleted, models.VisaStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("update visa status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update visa status affected rows: %w", err)
	}
	return affected > 0, nil
}
