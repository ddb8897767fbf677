package models

import "time"

// CreateVisaRequestPayload is the payload for opening a new visa case.
type CreateVisaRequestPayload struct {
	DestinationCountry string   `json:"destination_country" validate:"required"`
	VisaType           VisaType `json:"visa_type" validate:"required"`
	Purpose            string   `json:"purpose" validate:"required"`
}

// AssignVisaRequestPayload assigns a consultant to a pending case.
type AssignVisaRequestPayload struct {
	ConsultantID string `json:"consultant_id" validate:"required"`
}

// ReviewDocumentPayload records a consultant's verdict on an uploaded document.
type ReviewDocumentPayload struct {
	Status   DocumentStatus `json:"status" validate:"required,oneof=approved rejected"`
	Feedback *string        `json:"feedback,omitempty"`
}

// CompleteStepPayload marks the named processing step as done.
type CompleteStepPayload struct {
	Name  string  `json:"name" validate:"required"`
	Notes *string `json:"notes,omitempty"`
}

// VisaDecisionPayload records the final embassy outcome for a case.
type VisaDecisionPayload struct {
	Outcome VisaStatus `json:"outcome" validate:"required,oneof=approved rejected"`
	Note    *string    `json:"note,omitempty"`
}

// CancelVisaRequestPayload withdraws a case with a stated reason.
type CancelVisaRequestPayload struct {
	Reason string `json:"reason" validate:"required"`
}

// DocumentDownloadLink is the signed download reference returned to clients.
type DocumentDownloadLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
