package model

import "time"

// User carries the two denormalized counters maintained by the submission
// ingest path. At any quiescent point both must equal the values derivable
// by scanning the user's submissions.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	JoinedAt         time.Time `json:"joined_at"`
	TotalSolved      int       `json:"total_solved"`
	TotalSubmissions int       `json:"total_submissions"`
}
