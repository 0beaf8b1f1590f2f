package model

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	XP     int    `json:"xp"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users    int `json:"users"`
	Paths    int `json:"paths"`
	Topics   int `json:"topics"`
	Problems int `json:"problems"`
	Posts    int `json:"posts"`
}
