package service

import (
	"context"
	"fmt"
	"strings"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ContentCache is a versioned read-through cache; Invalidate drops every entry.
// Get reports the version it looked under and Set writes under that version.
type ContentCache interface {
	Get(ctx context.Context, name string, dst interface{}) (int64, bool, error)
	Set(ctx context.Context, name string, version int64, value interface{}) error
	Invalidate(ctx context.Context) error
}

type ContentService struct {
	repo  repository.ContentRepository
	cache ContentCache
	log   *logger.Logger
}

func NewContentService(repo repository.ContentRepository, cache ContentCache, log *logger.Logger) *ContentService {
	return &ContentService{repo: repo, cache: cache, log: log.With("service", "content")}
}

// readThrough serves key from the cache, falling back to load. Cache errors
// are logged and never fail the read.
func readThrough[T any](ctx context.Context, s *ContentService, key string, load func(context.Context) (T, error)) (T, error) {
	var (
		out       T
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		v, hit, err := s.cache.Get(ctx, key, &out)
		switch {
		case err != nil:
			s.log.Warn("content cache read failed", "key", key, "error", err)
		case hit:
			return out, nil
		default:
			version, cacheable = v, true
		}
	}
	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, version, out); err != nil {
			s.log.Warn("content cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}

func (s *ContentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Error("content cache invalidation failed", "error", err)
	}
}

func (s *ContentService) ListPaths(ctx context.Context) ([]model.LearningPath, error) {
	return readThrough(ctx, s, "paths", s.repo.ListPaths)
}

func (s *ContentService) ListTopics(ctx context.Context, pathID string) ([]model.Topic, error) {
	return readThrough(ctx, s, "paths:"+pathID+":topics", func(ctx context.Context) ([]model.Topic, error) {
		return s.repo.ListTopics(ctx, pathID)
	})
}

func (s *ContentService) ListAllTopics(ctx context.Context) ([]model.Topic, error) {
	return readThrough(ctx, s, "topics", s.repo.ListAllTopics)
}

func (s *ContentService) GetTopic(ctx context.Context, topicID string) (*model.Topic, error) {
	return readThrough(ctx, s, "topics:"+topicID, func(ctx context.Context) (*model.Topic, error) {
		return s.repo.FindTopicByID(ctx, topicID)
	})
}

func (s *ContentService) ListProblems(ctx context.Context, topicID string) ([]model.Problem, error) {
	return readThrough(ctx, s, "topics:"+topicID+":problems", func(ctx context.Context) ([]model.Problem, error) {
		return s.repo.ListProblems(ctx, topicID)
	})
}

func (s *ContentService) ListAllProblems(ctx context.Context) ([]model.Problem, error) {
	return readThrough(ctx, s, "problems", s.repo.ListAllProblems)
}

// ----- admin writes -----

type PathInput struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

type TopicInput struct {
	PathID      string `json:"pathId"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type ProblemInput struct {
	TopicID    string           `json:"topicId"`
	Title      string           `json:"title"`
	Slug       string           `json:"slug"`
	Difficulty model.Difficulty `json:"difficulty"`
	Tags       []string         `json:"tags"`
	VideoURL   string           `json:"videoUrl"`
	ProblemURL string           `json:"problemUrl"`
	Order      int              `json:"order"`
}

// makeSlug prefers an explicit slug and falls back to the title.
func makeSlug(explicit, title string) string {
	if s := slug.Make(strings.TrimSpace(explicit)); s != "" {
		return s
	}
	return slug.Make(title)
}

// cleanProblemTags trims, drops blanks and removes case-insensitive duplicates
// while keeping the first spelling.
func cleanProblemTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func (in PathInput) apply(p *model.LearningPath) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	p.Title = title
	p.Slug = makeSlug(in.Slug, title)
	if p.Slug == "" {
		return fmt.Errorf("title does not produce a usable slug: %w", common.ErrValidation)
	}
	p.Description = strings.TrimSpace(in.Description)
	p.Icon = strings.TrimSpace(in.Icon)
	p.Order = in.Order
	return nil
}

func (s *ContentService) CreatePath(ctx context.Context, in PathInput) (*model.LearningPath, error) {
	p := &model.LearningPath{ID: uuid.NewString()}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePath(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("learning path created", "path_id", p.ID, "slug", p.Slug)
	return p, nil
}

func (s *ContentService) UpdatePath(ctx context.Context, id string, in PathInput) (*model.LearningPath, error) {
	p, err := s.repo.FindPathByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePath(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *ContentService) DeletePath(ctx context.Context, id string) error {
	if err := s.repo.DeletePath(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("learning path deleted", "path_id", id)
	return nil
}

func (s *ContentService) applyTopic(ctx context.Context, in TopicInput, t *model.Topic) error {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.PathID) == "" {
		return fmt.Errorf("title and pathId are required: %w", common.ErrValidation)
	}
	if _, err := s.repo.FindPathByID(ctx, in.PathID); err != nil {
		return err
	}
	t.PathID = in.PathID
	t.Title = title
	t.Slug = makeSlug(in.Slug, title)
	if t.Slug == "" {
		return fmt.Errorf("title does not produce a usable slug: %w", common.ErrValidation)
	}
	t.Description = strings.TrimSpace(in.Description)
	t.Order = in.Order
	return nil
}

func (s *ContentService) CreateTopic(ctx context.Context, in TopicInput) (*model.Topic, error) {
	t := &model.Topic{ID: uuid.NewString()}
	if err := s.applyTopic(ctx, in, t); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTopic(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("topic created", "topic_id", t.ID, "slug", t.Slug)
	return t, nil
}

func (s *ContentService) UpdateTopic(ctx context.Context, id string, in TopicInput) (*model.Topic, error) {
	t, err := s.repo.FindTopicByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyTopic(ctx, in, t); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTopic(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return t, nil
}

func (s *ContentService) DeleteTopic(ctx context.Context, id string) error {
	if err := s.repo.DeleteTopic(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("topic deleted", "topic_id", id)
	return nil
}

func (s *ContentService) applyProblem(ctx context.Context, in ProblemInput, p *model.Problem) error {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.TopicID) == "" {
		return fmt.Errorf("title and topicId are required: %w", common.ErrValidation)
	}
	if !in.Difficulty.Valid() {
		return fmt.Errorf("difficulty must be Easy, Medium or Hard: %w", common.ErrValidation)
	}
	if _, err := s.repo.FindTopicByID(ctx, in.TopicID); err != nil {
		return err
	}
	p.TopicID = in.TopicID
	p.Title = title
	p.Slug = makeSlug(in.Slug, title)
	if p.Slug == "" {
		return fmt.Errorf("title does not produce a usable slug: %w", common.ErrValidation)
	}
	p.Difficulty = in.Difficulty
	p.Tags = cleanProblemTags(in.Tags)
	p.VideoURL = strings.TrimSpace(in.VideoURL)
	p.ProblemURL = strings.TrimSpace(in.ProblemURL)
	p.Order = in.Order
	return nil
}

func (s *ContentService) CreateProblem(ctx context.Context, in ProblemInput) (*model.Problem, error) {
	p := &model.Problem{ID: uuid.NewString()}
	if err := s.applyProblem(ctx, in, p); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProblem(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("problem created", "problem_id", p.ID, "slug", p.Slug)
	return p, nil
}

func (s *ContentService) UpdateProblem(ctx context.Context, id string, in ProblemInput) (*model.Problem, error) {
	p, err := s.repo.FindProblemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyProblem(ctx, in, p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProblem(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *ContentService) DeleteProblem(ctx context.Context, id string) error {
	if err := s.repo.DeleteProblem(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("problem deleted", "problem_id", id)
	return nil
}
