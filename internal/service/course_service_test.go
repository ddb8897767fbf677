package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	appErrors "github.com/ArbeitEmployee/studyabroad-api/pkg/errors"
)

type courseRepoStub struct {
	mu          sync.Mutex
	courses     map[string]*models.Course
	enrollments map[string]*models.CourseEnrollment
}

func newCourseRepoStub() *courseRepoStub {
	return &courseRepoStub{
		courses:     make(map[string]*models.Course),
		enrollments: make(map[string]*models.CourseEnrollment),
	}
}

func (s *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *courseRepoStub) Update(ctx context.Context, course *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (s *courseRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Course
	for _, course := range s.courses {
		out = append(out, *course)
	}
	return out, len(out), nil
}

func (s *courseRepoStub) HasActiveEnrollment(ctx context.Context, courseID, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, enrollment := range s.enrollments {
		if enrollment.CourseID == courseID && enrollment.StudentID == studentID && enrollment.Status == models.CourseEnrollmentActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *courseRepoStub) CreateEnrollment(ctx context.Context, enrollment *models.CourseEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.EnrolledAt = time.Now().UTC()
	if enrollment.Status == "" {
		enrollment.Status = models.CourseEnrollmentActive
	}
	copied := *enrollment
	s.enrollments[enrollment.ID] = &copied
	return nil
}

func (s *courseRepoStub) UpdateEnrollmentStatus(ctx context.Context, id string, status models.CourseEnrollmentStatus, completedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok || enrollment.Status != models.CourseEnrollmentActive {
		return false, nil
	}
	enrollment.Status = status
	enrollment.CompletedAt = completedAt
	return true, nil
}

func (s *courseRepoStub) ListEnrollments(ctx context.Context, courseID string) ([]models.CourseEnrollmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CourseEnrollmentDetail
	for _, enrollment := range s.enrollments {
		if enrollment.CourseID == courseID {
			out = append(out, models.CourseEnrollmentDetail{CourseEnrollment: *enrollment})
		}
	}
	return out, nil
}

func (s *courseRepoStub) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.CourseEnrollmentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CourseEnrollmentDetail
	for _, enrollment := range s.enrollments {
		if enrollment.StudentID == studentID {
			out = append(out, models.CourseEnrollmentDetail{CourseEnrollment: *enrollment})
		}
	}
	return out, nil
}

func (s *courseRepoStub) FindEnrollment(ctx context.Context, id string) (*models.CourseEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *enrollment
	return &copied, nil
}

func newCourseService(repo *courseRepoStub) *CourseService {
	return NewCourseService(repo, nil, nil, nil, time.Minute)
}

func seedCourse(t *testing.T, svc *CourseService, active bool) *models.Course {
	t.Helper()
	course, err := svc.Create(context.Background(), CoursePayload{
		Title:         "IELTS Preparation",
		Description:   "Intensive English exam training",
		Level:         "intermediate",
		DurationWeeks: 8,
		Fee:           450,
		Active:        &active,
	})
	require.NoError(t, err)
	return course
}

func TestCourseServiceEnrollRejectsInactiveCourse(t *testing.T) {
	svc := newCourseService(newCourseRepoStub())
	course := seedCourse(t, svc, false)

	_, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceEnrollRejectsDuplicate(t *testing.T) {
	svc := newCourseService(newCourseRepoStub())
	course := seedCourse(t, svc, true)

	first, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourseEnrollmentActive, first.Status)

	_, err = svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceStudentsMayOnlyDropOwnEnrollment(t *testing.T) {
	repo := newCourseRepoStub()
	svc := newCourseService(repo)
	course := seedCourse(t, svc, true)

	enrollment, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.NoError(t, err)

	_, err = svc.UpdateEnrollment(context.Background(), studentClaims(), enrollment.ID, models.CourseEnrollmentCompleted)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	other := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}
	_, err = svc.UpdateEnrollment(context.Background(), other, enrollment.ID, models.CourseEnrollmentDropped)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	dropped, err := svc.UpdateEnrollment(context.Background(), studentClaims(), enrollment.ID, models.CourseEnrollmentDropped)
	require.NoError(t, err)
	assert.Equal(t, models.CourseEnrollmentDropped, dropped.Status)
}

func TestCourseServiceCompleteSetsTimestamp(t *testing.T) {
	repo := newCourseRepoStub()
	svc := newCourseService(repo)
	course := seedCourse(t, svc, true)

	enrollment, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.NoError(t, err)

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	completed, err := svc.UpdateEnrollment(context.Background(), admin, enrollment.ID, models.CourseEnrollmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.CourseEnrollmentCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// A settled enrollment cannot change again.
	_, err = svc.UpdateEnrollment(context.Background(), admin, enrollment.ID, models.CourseEnrollmentDropped)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceEnrollAfterDropAllowed(t *testing.T) {
	repo := newCourseRepoStub()
	svc := newCourseService(repo)
	course := seedCourse(t, svc, true)

	enrollment, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.NoError(t, err)
	_, err = svc.UpdateEnrollment(context.Background(), studentClaims(), enrollment.ID, models.CourseEnrollmentDropped)
	require.NoError(t, err)

	again, err := svc.Enroll(context.Background(), studentClaims(), course.ID)
	require.NoError(t, err)
	assert.NotEqual(t, enrollment.ID, again.ID)
}
