package session

import "time"

// PendingJob is the single in-flight generation job for this booth. It is
// persisted when a submission is accepted and cleared once the job reaches a
// terminal status, so a restarted booth resumes polling the same result.
type PendingJob struct {
	ResultID        string
	PersonaID       string
	Score           int
	ClientRequestID string
	SubmittedAt     time.Time
}

// Result is one completed wizard round kept for the operator's history view.
type Result struct {
	ID        int64
	ResultID  string
	PersonaID string
	Score     int
	ImageURL  string
	Attendee  *Attendee
	CreatedAt time.Time
}

// Attendee carries the optional survey-mode registration details attached to
// a result.
type Attendee struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
