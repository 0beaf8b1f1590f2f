package model

import "time"

type ProblemStatus string

const (
	StatusTodo      ProblemStatus = "TODO"
	StatusAttempted ProblemStatus = "ATTEMPTED"
	StatusSolved    ProblemStatus = "SOLVED"
)

// MaxNotesLength bounds UserProblemState.Notes, counted in runes.
const MaxNotesLength = 10000

func (s ProblemStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusAttempted, StatusSolved:
		return true
	}
	return false
}

// UserProblemState is keyed by (UserID, ProblemID); at most one row per pair.
type UserProblemState struct {
	UserID     string        `json:"userId"`
	ProblemID  string        `json:"problemId"`
	Status     ProblemStatus `json:"status"`
	Bookmarked bool          `json:"bookmarked"`
	Notes      string        `json:"notes"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
