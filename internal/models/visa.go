package models

import (
	"time"

	"github.com/lib/pq"
)

// VisaType enumerates supported visa categories.
type VisaType string

const (
	VisaTypeStudent VisaType = "student"
	VisaTypeWork    VisaType = "work"
	VisaTypeTourist VisaType = "tourist"
)

// Valid reports whether the visa type is a known category.
func (t VisaType) Valid() bool {
	switch t {
	case VisaTypeStudent, VisaTypeWork, VisaTypeTourist:
		return true
	}
	return false
}

// VisaStatus represents the lifecycle of a visa request.
type VisaStatus string

const (
	VisaStatusPending   VisaStatus = "pending"
	VisaStatusAssigned  VisaStatus = "assigned"
	VisaStatusApproved  VisaStatus = "approved"
	VisaStatusRejected  VisaStatus = "rejected"
	VisaStatusCompleted VisaStatus = "completed"
	VisaStatusCancelled VisaStatus = "cancelled"
)

// Terminal reports whether the status permits no further mutation.
func (s VisaStatus) Terminal() bool {
	return s == VisaStatusCompleted || s == VisaStatusCancelled
}

// StepStatus represents a processing step state.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
)

// DocumentStatus represents the review state of a required document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// VisaRequest is the aggregate record tracking one student's visa case.
type VisaRequest struct {
	ID                   string     `db:"id" json:"id"`
	StudentID            string     `db:"student_id" json:"student_id"`
	DestinationCountry   string     `db:"destination_country" json:"destination_country"`
	VisaType             VisaType   `db:"visa_type" json:"visa_type"`
	Purpose              string     `db:"purpose" json:"purpose"`
	Status               VisaStatus `db:"status" json:"status"`
	AssignedConsultantID *string    `db:"assigned_consultant_id" json:"assigned_consultant_id,omitempty"`
	CurrentStep          int        `db:"current_step" json:"current_step"`
	CancellationReason   *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// VisaStep is one named stage in the ordered processing pipeline.
type VisaStep struct {
	ID                string         `db:"id" json:"id"`
	RequestID         string         `db:"request_id" json:"-"`
	Position          int            `db:"position" json:"position"`
	Name              string         `db:"name" json:"name"`
	Status            StepStatus     `db:"status" json:"status"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	RequiredDocuments pq.StringArray `db:"required_documents" json:"required_documents"`
	CompletedAt       *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// VisaDocument is one named required file artifact within a request.
type VisaDocument struct {
	ID         string         `db:"id" json:"id"`
	RequestID  string         `db:"request_id" json:"-"`
	Name       string         `db:"name" json:"name"`
	Status     DocumentStatus `db:"status" json:"status"`
	FilePath   *string        `db:"file_path" json:"file_path,omitempty"`
	Feedback   *string        `db:"feedback" json:"feedback,omitempty"`
	UploadedAt *time.Time     `db:"uploaded_at" json:"uploaded_at,omitempty"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// VisaRequestDetail bundles a request with its steps, documents and actor names.
type VisaRequestDetail struct {
	VisaRequest
	StudentName    string         `db:"student_name" json:"student_name"`
	ConsultantName *string        `db:"consultant_name" json:"consultant_name,omitempty"`
	Steps          []VisaStep     `db:"-" json:"steps"`
	Documents      []VisaDocument `db:"-" json:"documents"`
}

// CurrentStepName returns the name of the step at the current index, if any.
func (d *VisaRequestDetail) CurrentStepName() string {
	if d.CurrentStep < 0 || d.CurrentStep >= len(d.Steps) {
		return ""
	}
	return d.Steps[d.CurrentStep].Name
}

// VisaFilter provides filters for listing visa requests.
type VisaFilter struct {
	StudentID          string
	ConsultantID       string
	Status             VisaStatus
	VisaType           VisaType
	DestinationCountry string
	Page               int
	PageSize           int
	SortBy             string
	SortOrder          string
}
