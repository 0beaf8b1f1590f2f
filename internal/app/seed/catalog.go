// Package seed loads the learning catalog from YAML and upserts it by slug.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

type Catalog struct {
	Paths  []PathEntry `yaml:"paths"`
	Admins []string    `yaml:"admins"`
}

type PathEntry struct {
	Title       string       `yaml:"title"`
	Slug        string       `yaml:"slug"`
	Description string       `yaml:"description"`
	Icon        string       `yaml:"icon"`
	Order       int          `yaml:"order"`
	Topics      []TopicEntry `yaml:"topics"`
}

type TopicEntry struct {
	Title       string         `yaml:"title"`
	Slug        string         `yaml:"slug"`
	Description string         `yaml:"description"`
	Order       int            `yaml:"order"`
	Problems    []ProblemEntry `yaml:"problems"`
}

type ProblemEntry struct {
	Title      string           `yaml:"title"`
	Slug       string           `yaml:"slug"`
	Difficulty model.Difficulty `yaml:"difficulty"`
	Tags       []string         `yaml:"tags"`
	VideoURL   string           `yaml:"videoUrl"`
	ProblemURL string           `yaml:"problemUrl"`
	Order      int              `yaml:"order"`
}

// Result counts what Apply wrote.
type Result struct {
	Paths    int
	Topics   int
	Problems int
	Admins   int
}

// Parse decodes a catalog and checks required fields and difficulties.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, p := range c.Paths {
		if strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("paths[%d]: title is required: %w", i, common.ErrValidation)
		}
		for j, t := range p.Topics {
			if strings.TrimSpace(t.Title) == "" {
				return nil, fmt.Errorf("paths[%d].topics[%d]: title is required: %w", i, j, common.ErrValidation)
			}
			for k, pr := range t.Problems {
				if strings.TrimSpace(pr.Title) == "" {
					return nil, fmt.Errorf("paths[%d].topics[%d].problems[%d]: title is required: %w", i, j, k, common.ErrValidation)
				}
				if !pr.Difficulty.Valid() {
					return nil, fmt.Errorf("problem %q: unknown difficulty %q: %w", pr.Title, pr.Difficulty, common.ErrValidation)
				}
			}
		}
	}
	return &c, nil
}

func slugFor(explicit, title string) string {
	if s := slug.Make(explicit); s != "" {
		return s
	}
	return slug.Make(title)
}

// Apply upserts every entry by slug, recounts topic problem counts and
// promotes the listed admin emails. Running it twice leaves the same state.
func Apply(ctx context.Context, content repository.ContentRepository, users repository.UserRepository, c *Catalog, log *logger.Logger) (*Result, error) {
	res := &Result{}
	for _, pe := range c.Paths {
		path := &model.LearningPath{
			ID:          uuid.NewString(),
			Slug:        slugFor(pe.Slug, pe.Title),
			Title:       strings.TrimSpace(pe.Title),
			Description: strings.TrimSpace(pe.Description),
			Icon:        strings.TrimSpace(pe.Icon),
			Order:       pe.Order,
		}
		if err := content.UpsertPathBySlug(ctx, path); err != nil {
			return res, fmt.Errorf("path %q: %w", path.Slug, err)
		}
		res.Paths++

		for _, te := range pe.Topics {
			topic := &model.Topic{
				ID:          uuid.NewString(),
				PathID:      path.ID,
				Slug:        slugFor(te.Slug, te.Title),
				Title:       strings.TrimSpace(te.Title),
				Description: strings.TrimSpace(te.Description),
				Order:       te.Order,
			}
			if err := content.UpsertTopicBySlug(ctx, topic); err != nil {
				return res, fmt.Errorf("topic %q: %w", topic.Slug, err)
			}
			res.Topics++

			for _, prE := range te.Problems {
				problem := &model.Problem{
					ID:         uuid.NewString(),
					TopicID:    topic.ID,
					Title:      strings.TrimSpace(prE.Title),
					Slug:       slugFor(prE.Slug, prE.Title),
					Difficulty: prE.Difficulty,
					Tags:       append([]string{}, prE.Tags...),
					VideoURL:   strings.TrimSpace(prE.VideoURL),
					ProblemURL: strings.TrimSpace(prE.ProblemURL),
					Order:      prE.Order,
				}
				if err := content.UpsertProblemBySlug(ctx, problem); err != nil {
					return res, fmt.Errorf("problem %q: %w", problem.Slug, err)
				}
				res.Problems++
			}
		}
	}

	if err := content.RecountProblems(ctx); err != nil {
		return res, err
	}

	for _, email := range c.Admins {
		email = strings.ToLower(strings.TrimSpace(email))
		user, err := users.FindByEmail(ctx, email)
		if errors.Is(err, common.ErrNotFound) {
			log.Warn("admin account not registered yet", "email", email)
			continue
		}
		if err != nil {
			return res, err
		}
		if err := users.UpdateRole(ctx, user.ID, model.RoleAdmin); err != nil {
			return res, err
		}
		res.Admins++
	}
	return res, nil
}
