package model

import "time"

type ActivityKind string

const (
	ActivityLogin         ActivityKind = "login"
	ActivityProblemSolved ActivityKind = "problem_solved"
	ActivityPostCreated   ActivityKind = "post_created"
	ActivityReplyAdded    ActivityKind = "reply_added"
)

const (
	XPPostCreated = 5
	XPReplyAdded  = 2
)

// ActivityLogLimit is how many recent entries the profile endpoint returns.
const ActivityLogLimit = 50

// XPForDifficulty is the reward for solving a problem of the given difficulty.
func XPForDifficulty(d Difficulty) int {
	switch d {
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 40
	}
	return 10
}

// ActivityEvent travels through the activity queue.
type ActivityEvent struct {
	UserID     string       `json:"user_id"`
	Kind       ActivityKind `json:"kind"`
	XP         int          `json:"xp"`
	RefID      string       `json:"ref_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// ActivityEntry is one row of a user's activity log.
type ActivityEntry struct {
	Kind       ActivityKind `json:"kind"`
	XP         int          `json:"xp"`
	RefID      string       `json:"refId,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NextStreak computes the streak after activity at now, given the previous
// activity time. Days are UTC calendar days.
// Activity dated before lastActive's day does not change the streak.
func NextStreak(lastActive *time.Time, current int, now time.Time) int {
	if lastActive == nil {
		return 1
	}
	last := utcDay(*lastActive)
	today := utcDay(now)
	switch {
	case today.Equal(last), today.Before(last):
		// Late events from an earlier day leave the streak alone.
		if current < 1 {
			return 1
		}
		return current
	case today.Equal(last.AddDate(0, 0, 1)):
		return current + 1
	}
	return 1
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
