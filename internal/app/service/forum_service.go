package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"
	"algoforge/internal/platform/markdown"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ForumService struct {
	repo     repository.ForumRepository
	users    repository.UserRepository
	md       *markdown.Renderer
	activity ActivityRecorder
	log      *logger.Logger
}

func NewForumService(
	repo repository.ForumRepository,
	users repository.UserRepository,
	md *markdown.Renderer,
	activity ActivityRecorder,
	log *logger.Logger,
) *ForumService {
	return &ForumService{repo: repo, users: users, md: md, activity: activity, log: log.With("service", "forum")}
}

type CreatePostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

type AddReplyRequest struct {
	Content string `json:"content"`
}

type SetPinnedRequest struct {
	Pinned bool `json:"pinned"`
}

// NormalizeTags slugifies tags, drops empty and duplicate ones and keeps at
// most model.MaxPostTags in first-seen order.
func NormalizeTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		s := slug.Make(t)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == model.MaxPostTags {
			break
		}
	}
	return out
}

func (s *ForumService) render(p *model.Post) *model.Post {
	p.ContentHTML = s.md.Render(p.Content)
	if p.Replies == nil {
		p.Replies = []model.Reply{}
	}
	for i := range p.Replies {
		p.Replies[i].ContentHTML = s.md.Render(p.Replies[i].Content)
	}
	return p
}

// ListPosts pages through posts ForumPageSize at a time. Page numbers start
// at 1; anything lower is treated as 1 and anything above MaxForumPage as
// MaxForumPage.
func (s *ForumService) ListPosts(ctx context.Context, category, sort string, page int) (*model.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if page > model.MaxForumPage {
		page = model.MaxForumPage
	}
	category = strings.TrimSpace(category)
	if category == model.CategoryAll {
		category = ""
	}

	posts, total, err := s.repo.ListPosts(ctx, category, model.ParseForumSort(sort),
		model.ForumPageSize, (page-1)*model.ForumPageSize)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.PostSummary, 0, len(posts))
	for i := range posts {
		summaries = append(summaries, s.render(&posts[i]).Summary())
	}
	return &model.PostPage{
		Posts:       summaries,
		TotalPages:  (total + model.ForumPageSize - 1) / model.ForumPageSize,
		CurrentPage: page,
		Total:       total,
	}, nil
}

func (s *ForumService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.repo.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.render(post), nil
}

func (s *ForumService) CreatePost(ctx context.Context, userID string, req CreatePostRequest) (*model.Post, error) {
	title := strings.TrimSpace(req.Title)
	category := strings.TrimSpace(req.Category)
	if title == "" || strings.TrimSpace(req.Content) == "" || category == "" {
		return nil, fmt.Errorf("title, content and category are required: %w", common.ErrValidation)
	}
	if category == model.CategoryAll {
		return nil, fmt.Errorf("category %q is reserved: %w", model.CategoryAll, common.ErrValidation)
	}

	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  req.Content,
		Category: category,
		Tags:     NormalizeTags(req.Tags),
		Author:   model.Author{ID: author.ID, Name: author.Name},
		Likes:    []string{},
		Replies:  []model.Reply{},
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	s.log.Info("forum post created", "post_id", post.ID, "user_id", userID)
	s.activity.Record(ctx, model.ActivityEvent{
		UserID:     userID,
		Kind:       model.ActivityPostCreated,
		XP:         model.XPPostCreated,
		RefID:      post.ID,
		OccurredAt: time.Now().UTC(),
	})
	return s.render(post), nil
}

// AddReply appends to the post's reply sequence and returns the full post.
func (s *ForumService) AddReply(ctx context.Context, userID, postID, content string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is required: %w", common.ErrValidation)
	}
	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := &model.Reply{
		ID:      uuid.NewString(),
		PostID:  postID,
		Author:  model.Author{ID: author.ID, Name: author.Name},
		Content: content,
	}
	if err := s.repo.AddReply(ctx, reply); err != nil {
		return nil, err
	}
	s.activity.Record(ctx, model.ActivityEvent{
		UserID:     userID,
		Kind:       model.ActivityReplyAdded,
		XP:         model.XPReplyAdded,
		RefID:      postID,
		OccurredAt: time.Now().UTC(),
	})
	return s.GetPost(ctx, postID)
}

func (s *ForumService) TogglePostLike(ctx context.Context, userID, postID string) (*model.LikeResult, error) {
	return s.repo.TogglePostLike(ctx, postID, userID)
}

func (s *ForumService) ToggleReplyLike(ctx context.Context, userID, postID, replyID string) (*model.LikeResult, error) {
	return s.repo.ToggleReplyLike(ctx, postID, replyID, userID)
}

func (s *ForumService) SetPinned(ctx context.Context, postID string, pinned bool) (*model.Post, error) {
	if err := s.repo.SetPinned(ctx, postID, pinned); err != nil {
		return nil, err
	}
	s.log.Info("forum post pin changed", "post_id", postID, "pinned", pinned)
	return s.GetPost(ctx, postID)
}
