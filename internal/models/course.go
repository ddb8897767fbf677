package models

import "time"

// Course represents a preparatory course offered by the consultancy.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	CountryID     *string   `db:"country_id" json:"country_id,omitempty"`
	Level         string    `db:"level" json:"level"`
	DurationWeeks int       `db:"duration_weeks" json:"duration_weeks"`
	Fee           float64   `db:"fee" json:"fee"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseEnrollmentStatus represents the lifecycle of a course enrollment.
type CourseEnrollmentStatus string

const (
	CourseEnrollmentActive    CourseEnrollmentStatus = "ACTIVE"
	CourseEnrollmentCompleted CourseEnrollmentStatus = "COMPLETED"
	CourseEnrollmentDropped   CourseEnrollmentStatus = "DROPPED"
)

// CourseEnrollment captures a student's registration to a course.
type CourseEnrollment struct {
	ID          string                 `db:"id" json:"id"`
	CourseID    string                 `db:"course_id" json:"course_id"`
	StudentID   string                 `db:"student_id" json:"student_id"`
	Status      CourseEnrollmentStatus `db:"status" json:"status"`
	EnrolledAt  time.Time              `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
}

// CourseEnrollmentDetail enriches CourseEnrollment with course and student info.
type CourseEnrollmentDetail struct {
	CourseEnrollment
	CourseTitle string `db:"course_title" json:"course_title"`
	StudentName string `db:"student_name" json:"student_name"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Search    string
	CountryID string
	Level     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
