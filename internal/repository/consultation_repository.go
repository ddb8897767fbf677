package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
)

// ConsultationRepository handles persistence of consultation requests.
type ConsultationRepository struct {
	db *sqlx.DB
}

// NewConsultationRepository constructs the repository.
func NewConsultationRepository(db *sqlx.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Create persists a new consultation.
func (r *ConsultationRepository) Create(ctx context.Context, consultation *models.Consultation) error {
	if consultation.ID == "" {
		consultation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	consultation.CreatedAt = now
	consultation.UpdatedAt = now
	if consultation.Status == "" {
		consultation.Status = models.ConsultationStatusPending
	}

	const query = `INSERT INTO consultations (id, student_id, employee_id, topic, message, status, cancellation_reason, scheduled_at, created_at, updated_at)
VALUES (:id, :student_id, :employee_id, :topic, :message, :status, :cancellation_reason, :scheduled_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, consultation); err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}
	return nil
}

// FindByID returns a consultation with actor names.
func (r *ConsultationRepository) FindByID(ctx context.Context, id string) (*models.ConsultationDetail, error) {
	const query = `SELECT c.id, c.student_id, c.employee_id, c.topic, c.message, c.status, c.cancellation_reason, c.scheduled_at, c.created_at, c.updated_at,
        s.full_name AS student_name, e.full_name AS employee_name
        FROM consultations c
        LEFT JOIN users s ON s.id = c.student_id
        LEFT JOIN users e ON e.id = c.employee_id
        WHERE c.id = $1`
	var detail models.ConsultationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns consultations filtered by the provided criteria.
func (r *ConsultationRepository) List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error) {
	base := `FROM consultations c
LEFT JOIN users s ON s.id = c.student_id
LEFT JOIN users e ON e.id = c.employee_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("c.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EmployeeID != "" {
		conditions = append(conditions, fmt.Sprintf("c.employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "c.created_at",
		"scheduled_at": "c.scheduled_at",
		"status":       "c.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.student_id, c.employee_id, c.topic, c.message, c.status, c.cancellation_reason, c.scheduled_at, c.created_at, c.updated_at,
        s.full_name AS student_name, e.full_name AS employee_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var consultations []models.ConsultationDetail
	if err := r.db.SelectContext(ctx, &consultations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list consultations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count consultations: %w", err)
	}
	return consultations, total, nil
}

// Assign sets the employee and schedule on a pending consultation.
// Returns false when the consultation was not pending anymore.
func (r *ConsultationRepository) Assign(ctx context.Context, id, employeeID string, scheduledAt *time.Time) (bool, error) {
	const query = `UPDATE consultations SET employee_id = $2, scheduled_at = $3, status = $4, updated_at = $5 WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, employeeID, scheduledAt, models.ConsultationStatusAssigned, time.Now().UTC(), models.ConsultationStatusPending)
	if err != nil {
		return false, fmt.Errorf("assign consultation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign consultation affected rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus transitions a non-terminal consultation to the given status.
// Returns false when the consultation was already terminal.
func (r *ConsultationRepository) UpdateStatus(ctx context.Context, id string, status models.ConsultationStatus, cancellationReason *string) (bool, error) {
	const query = `UPDATE consultations SET status = $2, cancellation_reason = $3, updated_at = $4 WHERE id = $1 AND status NOT IN ($5, $6)`
	res, err := r.db.ExecContext(ctx, query, id, status, cancellationReason, time.Now().UTC(), models.ConsultationStatusCompleted, models.ConsultationStatusCancelled)
	if err != nil {
		return false, fmt.Errorf("update consultation status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update consultation status affected rows: %w", err)
	}
	return affected > 0, nil
}
