package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	HashedPassword string     `json:"-"` // Not exposed; empty for Google-only accounts
	GoogleID       string     `json:"googleId,omitempty"`
	Role           string     `json:"role"`
	XP             int        `json:"xp"`
	Streak         int        `json:"streak"`
	LastActiveAt   *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserSummary is what the auth endpoints hand back next to a token.
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UserProfile is the full document served by GET /api/users/me.
type UserProfile struct {
	User
	SolvedProblems []string        `json:"solvedProblems"`
	ActivityLog    []ActivityEntry `json:"activityLog"`
}
