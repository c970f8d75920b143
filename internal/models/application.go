// internal/models/application.go
package models

import "time"

// ApplicationStatus values. Confirmed is set by the check-in flow once an
// accepted applicant shows up at the event.
const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusConfirmed = "confirmed"
)

// ValidStatus reports whether s is one of the four application statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusConfirmed:
		return true
	}
	return false
}

// Application is one person's submission to one form. FormData is the open
// per-form answer map stored as JSONB; its required keys are validated by the
// intake service against the form's schema, not by the store.
type Application struct {
	ID          string                 `json:"id" db:"id"`
	FormKey     string                 `json:"formKey" db:"form_key"`
	SubmitterID string                 `json:"submitterId" db:"submitter_id"`
	Email       string                 `json:"email" db:"email"`
	FormData    map[string]interface{} `json:"formData" db:"form_data"`
	ResumeKey   string                 `json:"resumeKey,omitempty" db:"resume_key"`
	ResumeURL   string                 `json:"resumeUrl,omitempty" db:"-"`
	Status      string                 `json:"status" db:"status"`
	DecidedBy   string                 `json:"decidedBy,omitempty" db:"decided_by"`
	DecidedAt   *time.Time             `json:"decidedAt,omitempty" db:"decided_at"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
}

// ApplicationListItem is the flattened row the admin applicants table shows.
// Name/university fields are extracted from FormData at query time.
type ApplicationListItem struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	PrefName       string `json:"prefName,omitempty"`
	Email          string `json:"email,omitempty"`
	University     string `json:"university,omitempty"`
	Major          string `json:"major,omitempty"`
	GraduationYear string `json:"graduationYear,omitempty"`
	Country        string `json:"country,omitempty"`
	CreatedAt      string `json:"createdAt"`
	DecidedBy      string `json:"decidedBy,omitempty"`
}

// ReviewStats aggregates judging progress for the current form, with a
// per-admin breakdown attributed through Application.DecidedBy.
type ReviewStats struct {
	TotalPending  int `json:"totalPending"`
	TotalAccepted int `json:"totalAccepted"`
	TotalRejected int `json:"totalRejected"`
	UserAccepted  int `json:"userAccepted"`
	UserRejected  int `json:"userRejected"`
}
