package model

import "time"

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Problem struct {
	ID           string            `json:"id"`
	PlatformID   string            `json:"platform_id"`
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	Difficulty   ProblemDifficulty `json:"difficulty"`
	ProblemURL   string            `json:"problem_url,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Tags         []Tag             `json:"tags,omitempty"`
	PlatformName *string           `json:"platform_name,omitempty"` // For display
}
