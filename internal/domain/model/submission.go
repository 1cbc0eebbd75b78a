package model

import "time"

// VerdictAccepted is the canonical success verdict. Any other non-empty
// string counts as a non-accepted verdict; "Wrong Answer", "TLE", "RTE"
// are conventions, not enforced values.
const VerdictAccepted = "Accepted"

type Submission struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ProblemID       string    `json:"problem_id"`
	Verdict         string    `json:"verdict"`
	Language        string    `json:"language,omitempty"`
	AttemptNo       int       `json:"attempt_no"`
	ExecutionTimeMs *int      `json:"execution_time_ms,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Username        *string   `json:"username,omitempty"`      // For display
	ProblemTitle    *string   `json:"problem_title,omitempty"` // For display
}

func (s *Submission) Accepted() bool {
	return s.Verdict == VerdictAccepted
}
