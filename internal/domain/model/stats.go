package model

import "time"

// UserTagStat is a derived row, fully replaced on every recompute pass.
// attempts counts every submission by the user to any problem carrying the
// tag; a problem with several tags contributes to each of them.
type UserTagStat struct {
	UserID       string    `json:"user_id"`
	TagID        string    `json:"tag_id"`
	TagName      string    `json:"tag_name,omitempty"` // For display
	Attempts     int       `json:"attempts"`
	Accepted     int       `json:"accepted"`
	AcceptedRate float64   `json:"accepted_rate"`
	ComputedAt   time.Time `json:"computed_at"`
}

type LeaderboardEntry struct {
	Rank             int      `json:"rank"`
	UserID           string   `json:"user_id"`
	Username         string   `json:"username"`
	TotalSolved      int      `json:"total_solved"`
	TotalSubmissions int      `json:"total_submissions"`
	AvgAcceptedMs    *float64 `json:"avg_accepted_ms,omitempty"`
}

type TagSummary struct {
	TagID        string  `json:"tag_id"`
	TagName      string  `json:"tag_name"`
	ProblemCount int     `json:"problem_count"`
	Submissions  int     `json:"submissions"`
	Accepted     int     `json:"accepted"`
	AcceptedRate float64 `json:"accepted_rate"`
}

type UserLastSubmission struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	SubmissionID string    `json:"submission_id"`
	ProblemID    string    `json:"problem_id"`
	ProblemTitle string    `json:"problem_title"`
	Verdict      string    `json:"verdict"`
	AttemptNo    int       `json:"attempt_no"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type WeekBucket struct {
	Week        string `json:"week"` // ISO year-week, e.g. "2026-W35"
	Submissions int    `json:"submissions"`
}

type Overview struct {
	Users        int          `json:"users"`
	Problems     int          `json:"problems"`
	Submissions  int          `json:"submissions"`
	Accepted     int          `json:"accepted"`
	AcceptedRate float64      `json:"accepted_rate"`
	WeeklyTrend  []WeekBucket `json:"weekly_trend"`
}
