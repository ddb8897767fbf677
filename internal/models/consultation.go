package models

import "time"

// ConsultationStatus represents the lifecycle of a consultation request.
type ConsultationStatus string

const (
	ConsultationStatusPending   ConsultationStatus = "pending"
	ConsultationStatusAssigned  ConsultationStatus = "assigned"
	ConsultationStatusCompleted ConsultationStatus = "completed"
	ConsultationStatusCancelled ConsultationStatus = "cancelled"
)

// Terminal reports whether the consultation permits no further mutation.
func (s ConsultationStatus) Terminal() bool {
	return s == ConsultationStatusCompleted || s == ConsultationStatusCancelled
}

// Consultation captures a student's request for a consultancy session.
type Consultation struct {
	ID                 string             `db:"id" json:"id"`
	StudentID          string             `db:"student_id" json:"student_id"`
	EmployeeID         *string            `db:"employee_id" json:"employee_id,omitempty"`
	Topic              string             `db:"topic" json:"topic"`
	Message            string             `db:"message" json:"message"`
	Status             ConsultationStatus `db:"status" json:"status"`
	CancellationReason *string            `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	ScheduledAt        *time.Time         `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// ConsultationDetail enriches Consultation with actor names.
type ConsultationDetail struct {
	Consultation
	StudentName  string  `db:"student_name" json:"student_name"`
	EmployeeName *string `db:"employee_name" json:"employee_name,omitempty"`
}

// ConsultationFilter provides filters for listing consultations.
type ConsultationFilter struct {
	StudentID  string
	EmployeeID string
	Status     ConsultationStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
