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

// CourseRepository handles persistence of courses and enrollments.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, title, description, country_id, level, duration_weeks, fee, active, created_at, updated_at)
VALUES (:id, :title, :description, :country_id, :level, :duration_weeks, :fee, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists course changes.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, country_id = :country_id, level = :level, duration_weeks = :duration_weeks, fee = :fee, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("course %s not found", course.ID)
	}
	return nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, country_id, level, duration_weeks, fee, active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.CountryID != "" {
		conditions = append(conditions, fmt.Sprintf("country_id = $%d", len(args)+1))
		args = append(args, filter.CountryID)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"title":      "title",
		"fee":        "fee",
		"level":      "level",
		"created_at": "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT id, title, description, country_id, level, duration_weeks, fee, active, created_at, updated_at FROM courses%s ORDER BY %s %s LIMIT %d OFFSET %d`, clause, orderBy, order, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// HasActiveEnrollment checks if the student already has an active enrollment.
func (r *CourseRepository) HasActiveEnrollment(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM course_enrollments WHERE course_id = $1 AND student_id = $2 AND status = $3 LIMIT 1`
	var exists int
	err := r.db.GetContext(ctx, &exists, query, courseID, studentID, models.CourseEnrollmentActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CreateEnrollment persists a new enrollment.
func (r *CourseRepository) CreateEnrollment(ctx context.Context, enrollment *models.CourseEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.CourseEnrollmentActive
	}

	const query = `INSERT INTO course_enrollments (id, course_id, student_id, status, enrolled_at, completed_at)
VALUES (:id, :course_id, :student_id, :status, :enrolled_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateEnrollmentStatus moves an active enrollment to the given status.
// Returns false when the enrollment was not active anymore.
func (r *CourseRepository) UpdateEnrollmentStatus(ctx context.Context, id string, status models.CourseEnrollmentStatus, completedAt *time.Time) (bool, error) {
	const query = `UPDATE course_enrollments SET status = $2, completed_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, completedAt, models.CourseEnrollmentActive)
	if err != nil {
		return false, fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update enrollment status affected rows: %w", err)
	}
	return affected > 0, nil
}

// ListEnrollments returns enrollments of a course with course and student info.
func (r *CourseRepository) ListEnrollments(ctx context.Context, courseID string) ([]models.CourseEnrollmentDetail, error) {
	const query = `SELECT e.id, e.course_id, e.student_id, e.status, e.enrolled_at, e.completed_at,
        c.title AS course_title, s.full_name AS student_name
        FROM course_enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN users s ON s.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY e.enrolled_at DESC`
	var enrollments []models.CourseEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListStudentEnrollments returns a student's enrollments.
func (r *CourseRepository) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.CourseEnrollmentDetail, error) {
	const query = `SELECT e.id, e.course_id, e.student_id, e.status, e.enrolled_at, e.completed_at,
        c.title AS course_title, s.full_name AS student_name
        FROM course_enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN users s ON s.id = e.student_id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_at DESC`
	var enrollments []models.CourseEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// FindEnrollment returns an enrollment by its ID.
func (r *CourseRepository) FindEnrollment(ctx context.Context, id string) (*models.CourseEnrollment, error) {
	const query = `SELECT id, course_id, student_id, status, enrolled_at, completed_at FROM course_enrollments WHERE id = $1`
	var enrollment models.CourseEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
