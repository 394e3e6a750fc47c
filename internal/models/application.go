package models

import (
	"time"
)

type ApplicationStatus string

const (
	StatusPending    ApplicationStatus = "pending"
	StatusProcessing ApplicationStatus = "processing"
	StatusSuccess    ApplicationStatus = "success"
	StatusFailed     ApplicationStatus = "failed"
	StatusSkipped    ApplicationStatus = "skipped"
)

const DefaultMaxAttempts = 3

// Application is one candidate-to-job submission attempt record.
type Application struct {
	ID int64 `json:"id"`

	// Job info
	JobURL      string  `json:"job_url"`
	JobTitle    *string `json:"job_title,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	JobID       *int64  `json:"job_id,omitempty"` // FK into the scraper jobs table, when shared

	// Candidate
	Name           string  `json:"name"`
	Surname        string  `json:"surname"`
	Email          string  `json:"email"`
	Sex            string  `json:"sex"`        // M or F
	BirthDate      string  `json:"birth_date"` // dd/mm/yyyy
	Municipality   string  `json:"municipality"`
	Address        *string `json:"address,omitempty"`
	PostalCode     string  `json:"postal_code"`
	Phone          string  `json:"phone"`
	Education      string  `json:"education"`
	Occupation     string  `json:"occupation"`
	CompetenceArea string  `json:"competence_area"`
	CoverLetter    *string `json:"cover_letter,omitempty"`
	CVReference    string  `json:"cv_reference"`

	// Consent flags
	AcceptPrivacy    bool `json:"accept_privacy"`
	AcceptMarketing  bool `json:"accept_marketing"`
	AcceptThirdParty bool `json:"accept_third_party"`
	AcceptDataBank   bool `json:"accept_data_bank"`

	// Status tracking
	Status         ApplicationStatus `json:"status"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	ScreenshotPath *string           `json:"screenshot_path,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Retry logic
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
}

// CanRetry reports whether the record is eligible for another attempt.
func (a *Application) CanRetry() bool {
	if a.Status != StatusFailed && a.Status != StatusSkipped {
		return false
	}
	return a.Attempts < a.MaxAttempts
}

// IsTerminal reports whether the record reached a final status.
func (a *Application) IsTerminal() bool {
	switch a.Status {
	case StatusSuccess, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// SetError records a failure message on the record.
func (a *Application) SetError(status ApplicationStatus, msg string) {
	a.Status = status
	a.ErrorMessage = &msg
}

// ApplicationRun is one batch execution over pending applications.
type ApplicationRun struct {
	ID int64 `json:"id"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`

	Status string `json:"status"` // running, completed, failed
}
