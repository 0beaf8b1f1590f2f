package model

import (
	"sort"
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Rank orders difficulties by severity. Unknown values sort last.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	}
	return 4
}

func (d Difficulty) Valid() bool {
	return d.Rank() < 4
}

// LearningPath is a roadmap grouping several topics.
type LearningPath struct {
	ID          string    `json:"_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Topic struct {
	ID           string    `json:"_id"`
	PathID       string    `json:"pathId"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Order        int       `json:"order"`
	ProblemCount int       `json:"problemCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Problem struct {
	ID         string     `json:"_id"`
	TopicID    string     `json:"topicId"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Difficulty Difficulty `json:"difficulty"`
	Tags       []string   `json:"tags"`
	VideoURL   string     `json:"videoUrl"`
	ProblemURL string     `json:"problemUrl"`
	Order      int        `json:"order"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func SortPaths(paths []LearningPath) {
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Order != paths[j].Order {
			return paths[i].Order < paths[j].Order
		}
		return paths[i].Title < paths[j].Title
	})
}

func SortTopics(topics []Topic) {
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Order != topics[j].Order {
			return topics[i].Order < topics[j].Order
		}
		return topics[i].Title < topics[j].Title
	})
}

// SortProblems orders by position, then difficulty, then title.
func SortProblems(problems []Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		a, b := problems[i], problems[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Difficulty.Rank() != b.Difficulty.Rank() {
			return a.Difficulty.Rank() < b.Difficulty.Rank()
		}
		return a.Title < b.Title
	})
}
