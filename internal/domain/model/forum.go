package model

import (
	"math"
	"time"
)

// ForumPageSize is the fixed number of posts per listing page.
const ForumPageSize = 20

// MaxForumPage bounds the requested page so the row offset stays within int32.
const MaxForumPage = math.MaxInt32 / ForumPageSize

// MaxPostTags caps the normalised tag set of a post.
const MaxPostTags = 10

const CategoryAll = "all"

type ForumSort string

const (
	SortLatest  ForumSort = "latest"
	SortOldest  ForumSort = "oldest"
	SortPopular ForumSort = "popular"
	SortActive  ForumSort = "active"
)

// ParseForumSort falls back to SortLatest for unknown keys.
func ParseForumSort(raw string) ForumSort {
	switch s := ForumSort(raw); s {
	case SortOldest, SortPopular, SortActive:
		return s
	}
	return SortLatest
}

type Author struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Reply struct {
	ID          string    `json:"_id"`
	PostID      string    `json:"postId"`
	Author      Author    `json:"author"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml"`
	Likes       []string  `json:"likes"`
	LikeCount   int       `json:"likeCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Post struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Pinned      bool      `json:"pinned"`
	Author      Author    `json:"author"`
	Likes       []string  `json:"likes"`
	LikeCount   int       `json:"likeCount"`
	Replies     []Reply   `json:"replies"`
	ReplyCount  int       `json:"replyCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PostSummary is the listing view of a post; replies are only counted.
type PostSummary struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"contentHtml"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Pinned      bool      `json:"pinned"`
	Author      Author    `json:"author"`
	Likes       []string  `json:"likes"`
	LikeCount   int       `json:"likeCount"`
	ReplyCount  int       `json:"replyCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		ContentHTML: p.ContentHTML,
		Category:    p.Category,
		Tags:        p.Tags,
		Pinned:      p.Pinned,
		Author:      p.Author,
		Likes:       p.Likes,
		LikeCount:   p.LikeCount,
		ReplyCount:  p.ReplyCount,
		CreatedAt:   p.CreatedAt,
	}
}

type PostPage struct {
	Posts       []PostSummary `json:"posts"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Total       int           `json:"total"`
}

// LikeResult reports the caller's membership after a toggle and the set size.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
