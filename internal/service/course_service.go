package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

const courseCachePrefix = "catalog:courses"

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	HasActiveEnrollment(ctx context.Context, courseID, studentID string) (bool, error)
	CreateEnrollment(ctx context.Context, enrollment *models.CourseEnrollment) error
	UpdateEnrollmentStatus(ctx context.Context, id string, status models.CourseEnrollmentStatus, completedAt *time.Time) (bool, error)
	ListEnrollments(ctx context.Context, courseID string) ([]models.CourseEnrollmentDetail, error)
	ListStudentEnrollments(ctx context.Context, studentID string) ([]models.CourseEnrollmentDetail, error)
	FindEnrollment(ctx context.Context, id string) (*models.CourseEnrollment, error)
}

// CoursePayload creates or updates a preparatory course.
type CoursePayload struct {
	Title         string  `json:"title" validate:"required"`
	Description   string  `json:"description" validate:"required"`
	CountryID     *string `json:"country_id,omitempty"`
	Level         string  `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	DurationWeeks int     `json:"duration_weeks" validate:"required,gt=0"`
	Fee           float64 `json:"fee" validate:"gte=0"`
	Active        *bool   `json:"active,omitempty"`
}

// CourseService manages the course catalog and enrollments.
type CourseService struct {
	repo      courseRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(repo courseRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, payload CoursePayload) (*models.Course, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	course := &models.Course{
		Title:         payload.Title,
		Description:   payload.Description,
		CountryID:     payload.CountryID,
		Level:         payload.Level,
		DurationWeeks: payload.DurationWeeks,
		Fee:           payload.Fee,
		Active:        active,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidate(ctx)
	return course, nil
}

// Update changes an existing course.
func (s *CourseService) Update(ctx context.Context, id string, payload CoursePayload) (*models.Course, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	course.Title = payload.Title
	course.Description = payload.Description
	course.CountryID = payload.CountryID
	course.Level = payload.Level
	course.DurationWeeks = payload.DurationWeeks
	course.Fee = payload.Fee
	if payload.Active != nil {
		course.Active = *payload.Active
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidate(ctx)
	return course, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	cacheKey := fmt.Sprintf("%s:detail:%s", courseCachePrefix, id)
	var cached models.Course
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, course, s.cacheTTL); err != nil {
			s.logger.Warn("cache course detail", zap.Error(err))
		}
	}
	return course, nil
}

// List returns courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Enroll registers the calling student in an active course.
func (s *CourseService) Enroll(ctx context.Context, claims *models.JWTClaims, courseID string) (*models.CourseEnrollment, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course is not open for enrollment")
	}

	active, err := s.repo.HasActiveEnrollment(ctx, courseID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	}

	enrollment := &models.CourseEnrollment{
		CourseID:  courseID,
		StudentID: claims.UserID,
		Status:    models.CourseEnrollmentActive,
	}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}
	return enrollment, nil
}

// UpdateEnrollment moves an active enrollment to completed or dropped.
func (s *CourseService) UpdateEnrollment(ctx context.Context, claims *models.JWTClaims, enrollmentID string, status models.CourseEnrollmentStatus) (*models.CourseEnrollment, error) {
	if status != models.CourseEnrollmentCompleted && status != models.CourseEnrollmentDropped {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be COMPLETED or DROPPED")
	}

	enrollment, err := s.repo.FindEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if claims.Role == models.RoleStudent {
		if enrollment.StudentID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		if status != models.CourseEnrollmentDropped {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only drop enrollments")
		}
	}

	var completedAt *time.Time
	if status == models.CourseEnrollmentCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}
	updated, err := s.repo.UpdateEnrollmentStatus(ctx, enrollmentID, status, completedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not active")
	}

	return s.repo.FindEnrollment(ctx, enrollmentID)
}

// Enrollments lists a course's enrollments (staff view).
func (s *CourseService) Enrollments(ctx context.Context, courseID string) ([]models.CourseEnrollmentDetail, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// MyEnrollments lists the calling student's enrollments.
func (s *CourseService) MyEnrollments(ctx context.Context, claims *models.JWTClaims) ([]models.CourseEnrollmentDetail, error) {
	enrollments, err := s.repo.ListStudentEnrollments(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, courseCachePrefix+"*"); err != nil {
		s.logger.Warn("invalidate course cache", zap.Error(err))
	}
}
