package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"

	"github.com/jackc/pgx/v5/pgtype"
)

// ContentRepository owns learning paths, topics and problems.
type ContentRepository interface {
	ListPaths(ctx context.Context) ([]model.LearningPath, error)
	FindPathByID(ctx context.Context, id string) (*model.LearningPath, error)
	CreatePath(ctx context.Context, path *model.LearningPath) error
	UpdatePath(ctx context.Context, path *model.LearningPath) error
	DeletePath(ctx context.Context, id string) error
	UpsertPathBySlug(ctx context.Context, path *model.LearningPath) error

	ListTopics(ctx context.Context, pathID string) ([]model.Topic, error)
	ListAllTopics(ctx context.Context) ([]model.Topic, error)
	FindTopicByID(ctx context.Context, id string) (*model.Topic, error)
	CreateTopic(ctx context.Context, topic *model.Topic) error
	UpdateTopic(ctx context.Context, topic *model.Topic) error
	DeleteTopic(ctx context.Context, id string) error
	UpsertTopicBySlug(ctx context.Context, topic *model.Topic) error

	ListProblems(ctx context.Context, topicID string) ([]model.Problem, error)
	ListAllProblems(ctx context.Context) ([]model.Problem, error)
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	// CreateProblem and DeleteProblem keep topics.problem_count in step.
	CreateProblem(ctx context.Context, problem *model.Problem) error
	UpdateProblem(ctx context.Context, problem *model.Problem) error
	DeleteProblem(ctx context.Context, id string) error
	UpsertProblemBySlug(ctx context.Context, problem *model.Problem) error
	RecountProblems(ctx context.Context) error

	Stats(ctx context.Context) (*model.Stats, error)
}

type pgContentRepository struct {
	db   *sql.DB
	tmap *pgtype.Map
}

func NewPgContentRepository(db *sql.DB) ContentRepository {
	return &pgContentRepository{db: db, tmap: pgtype.NewMap()}
}

// notFoundOr maps "no row" and malformed-id failures to ErrNotFound.
func notFoundOr(err error, what, op string) error {
	if errors.Is(err, sql.ErrNoRows) || common.IsInvalidID(err) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func writeErr(err error, what, op string) error {
	switch {
	case common.IsUniqueViolation(err):
		return fmt.Errorf("%s with this slug already exists: %w", what, common.ErrConflict)
	case common.IsForeignKeyViolation(err), common.IsInvalidID(err):
		return fmt.Errorf("%s parent: %w", what, common.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affectedOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}

// ----- learning paths -----

const pathColumns = `id, slug, title, description, icon, sort_order, created_at, updated_at`

func scanPath(row rowScanner) (*model.LearningPath, error) {
	p := &model.LearningPath{}
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Icon, &p.Order, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *pgContentRepository) ListPaths(ctx context.Context) ([]model.LearningPath, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pathColumns+` FROM learning_paths ORDER BY sort_order, title, id`)
	if err != nil {
		return nil, fmt.Errorf("pgContentRepository.ListPaths query: %w", err)
	}
	defer rows.Close()

	paths := []model.LearningPath{}
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContentRepository.ListPaths scan: %w", err)
		}
		paths = append(paths, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContentRepository.ListPaths rows.Err: %w", err)
	}
	return paths, nil
}

func (r *pgContentRepository) FindPathByID(ctx context.Context, id string) (*model.LearningPath, error) {
	p, err := scanPath(r.db.QueryRowContext(ctx, `SELECT `+pathColumns+` FROM learning_paths WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "learning path", "pgContentRepository.FindPathByID")
	}
	return p, nil
}

func (r *pgContentRepository) CreatePath(ctx context.Context, p *model.LearningPath) error {
	query := `INSERT INTO learning_paths (id, slug, title, description, icon, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Slug, p.Title, p.Description, p.Icon, p.Order).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return writeErr(err, "learning path", "pgContentRepository.CreatePath")
	}
	return nil
}

func (r *pgContentRepository) UpdatePath(ctx context.Context, p *model.LearningPath) error {
	query := `UPDATE learning_paths SET slug = $2, title = $3, description = $4, icon = $5, sort_order = $6,
	                 updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Slug, p.Title, p.Description, p.Icon, p.Order).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("learning path: %w", common.ErrNotFound)
		}
		return writeErr(err, "learning path", "pgContentRepository.UpdatePath")
	}
	return nil
}

func (r *pgContentRepository) DeletePath(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM learning_paths WHERE id = $1`, id)
	if err != nil {
		return notFoundOr(err, "learning path", "pgContentRepository.DeletePath")
	}
	return affectedOne(res, "learning path")
}

func (r *pgContentRepository) UpsertPathBySlug(ctx context.Context, p *model.LearningPath) error {
	query := `INSERT INTO learning_paths (id, slug, title, description, icon, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
	                 icon = EXCLUDED.icon, sort_order = EXCLUDED.sort_order, updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + pathColumns
	got, err := scanPath(r.db.QueryRowContext(ctx, query, p.ID, p.Slug, p.Title, p.Description, p.Icon, p.Order))
	if err != nil {
		return fmt.Errorf("pgContentRepository.UpsertPathBySlug: %w", err)
	}
	*p = *got
	return nil
}

// ----- topics -----

const topicColumns = `id, path_id, slug, title, description, sort_order, problem_count, created_at, updated_at`

func scanTopic(row rowScanner) (*model.Topic, error) {
	t := &model.Topic{}
	err := row.Scan(&t.ID, &t.PathID, &t.Slug, &t.Title, &t.Description, &t.Order, &t.ProblemCount, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *pgContentRepository) queryTopics(ctx context.Context, op, query string, args ...interface{}) ([]model.Topic, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if common.IsInvalidID(err) {
			return []model.Topic{}, nil
		}
		return nil, fmt.Errorf("pgContentRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	topics := []model.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContentRepository.%s scan: %w", op, err)
		}
		topics = append(topics, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContentRepository.%s rows.Err: %w", op, err)
	}
	return topics, nil
}

func (r *pgContentRepository) ListTopics(ctx context.Context, pathID string) ([]model.Topic, error) {
	return r.queryTopics(ctx, "ListTopics",
		`SELECT `+topicColumns+` FROM topics WHERE path_id = $1 ORDER BY sort_order, title, id`, pathID)
}

func (r *pgContentRepository) ListAllTopics(ctx context.Context) ([]model.Topic, error) {
	return r.queryTopics(ctx, "ListAllTopics",
		`SELECT `+topicColumns+` FROM topics ORDER BY sort_order, title, id`)
}

func (r *pgContentRepository) FindTopicByID(ctx context.Context, id string) (*model.Topic, error) {
	t, err := scanTopic(r.db.QueryRowContext(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "topic", "pgContentRepository.FindTopicByID")
	}
	return t, nil
}

func (r *pgContentRepository) CreateTopic(ctx context.Context, t *model.Topic) error {
	query := `INSERT INTO topics (id, path_id, slug, title, description, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING problem_count, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, t.ID, t.PathID, t.Slug, t.Title, t.Description, t.Order).
		Scan(&t.ProblemCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return writeErr(err, "topic", "pgContentRepository.CreateTopic")
	}
	return nil
}

func (r *pgContentRepository) UpdateTopic(ctx context.Context, t *model.Topic) error {
	query := `UPDATE topics SET path_id = $2, slug = $3, title = $4, description = $5, sort_order = $6,
	                 updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 RETURNING problem_count, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, t.ID, t.PathID, t.Slug, t.Title, t.Description, t.Order).
		Scan(&t.ProblemCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("topic: %w", common.ErrNotFound)
		}
		return writeErr(err, "topic", "pgContentRepository.UpdateTopic")
	}
	return nil
}

func (r *pgContentRepository) DeleteTopic(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return notFoundOr(err, "topic", "pgContentRepository.DeleteTopic")
	}
	return affectedOne(res, "topic")
}

func (r *pgContentRepository) UpsertTopicBySlug(ctx context.Context, t *model.Topic) error {
	query := `INSERT INTO topics (id, path_id, slug, title, description, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (slug) DO UPDATE SET path_id = EXCLUDED.path_id, title = EXCLUDED.title,
	                 description = EXCLUDED.description, sort_order = EXCLUDED.sort_order,
	                 updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + topicColumns
	got, err := scanTopic(r.db.QueryRowContext(ctx, query, t.ID, t.PathID, t.Slug, t.Title, t.Description, t.Order))
	if err != nil {
		return writeErr(err, "topic", "pgContentRepository.UpsertTopicBySlug")
	}
	*t = *got
	return nil
}

// ----- problems -----

const problemColumns = `id, topic_id, title, slug, difficulty, tags, video_url, problem_url, sort_order, created_at, updated_at`

func (r *pgContentRepository) scanProblem(row rowScanner) (*model.Problem, error) {
	p := &model.Problem{}
	var difficulty string
	err := row.Scan(&p.ID, &p.TopicID, &p.Title, &p.Slug, &difficulty, r.tmap.SQLScanner(&p.Tags),
		&p.VideoURL, &p.ProblemURL, &p.Order, &p.CreatedAt, &p.UpdatedAt)
	p.Difficulty = model.Difficulty(difficulty)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p, err
}

func (r *pgContentRepository) queryProblems(ctx context.Context, op, query string, args ...interface{}) ([]model.Problem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if common.IsInvalidID(err) {
			return []model.Problem{}, nil
		}
		return nil, fmt.Errorf("pgContentRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		p, err := r.scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContentRepository.%s scan: %w", op, err)
		}
		problems = append(problems, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContentRepository.%s rows.Err: %w", op, err)
	}
	model.SortProblems(problems)
	return problems, nil
}

func (r *pgContentRepository) ListProblems(ctx context.Context, topicID string) ([]model.Problem, error) {
	return r.queryProblems(ctx, "ListProblems",
		`SELECT `+problemColumns+` FROM problems WHERE topic_id = $1`, topicID)
}

func (r *pgContentRepository) ListAllProblems(ctx context.Context) ([]model.Problem, error) {
	return r.queryProblems(ctx, "ListAllProblems", `SELECT `+problemColumns+` FROM problems`)
}

func (r *pgContentRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	p, err := r.scanProblem(r.db.QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "problem", "pgContentRepository.FindProblemByID")
	}
	return p, nil
}

func (r *pgContentRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContentRepository.CreateProblem begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO problems (id, topic_id, title, slug, difficulty, tags, video_url, problem_url, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, p.ID, p.TopicID, p.Title, p.Slug, string(p.Difficulty), p.Tags,
		p.VideoURL, p.ProblemURL, p.Order).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return writeErr(err, "problem", "pgContentRepository.CreateProblem")
	}
	if err := adjustProblemCount(ctx, tx, p.TopicID, 1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgContentRepository.CreateProblem commit: %w", err)
	}
	return nil
}

func (r *pgContentRepository) UpdateProblem(ctx context.Context, p *model.Problem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContentRepository.UpdateProblem begin: %w", err)
	}
	defer tx.Rollback()

	var oldTopic string
	err = tx.QueryRowContext(ctx, `SELECT topic_id FROM problems WHERE id = $1 FOR UPDATE`, p.ID).Scan(&oldTopic)
	if err != nil {
		return notFoundOr(err, "problem", "pgContentRepository.UpdateProblem")
	}

	query := `UPDATE problems SET topic_id = $2, title = $3, slug = $4, difficulty = $5, tags = $6,
	                 video_url = $7, problem_url = $8, sort_order = $9, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, p.ID, p.TopicID, p.Title, p.Slug, string(p.Difficulty), p.Tags,
		p.VideoURL, p.ProblemURL, p.Order).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return writeErr(err, "problem", "pgContentRepository.UpdateProblem")
	}
	if oldTopic != p.TopicID {
		if err := adjustProblemCount(ctx, tx, oldTopic, -1); err != nil {
			return err
		}
		if err := adjustProblemCount(ctx, tx, p.TopicID, 1); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgContentRepository.UpdateProblem commit: %w", err)
	}
	return nil
}

func (r *pgContentRepository) DeleteProblem(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgContentRepository.DeleteProblem begin: %w", err)
	}
	defer tx.Rollback()

	var topicID string
	err = tx.QueryRowContext(ctx, `DELETE FROM problems WHERE id = $1 RETURNING topic_id`, id).Scan(&topicID)
	if err != nil {
		return notFoundOr(err, "problem", "pgContentRepository.DeleteProblem")
	}
	if err := adjustProblemCount(ctx, tx, topicID, -1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgContentRepository.DeleteProblem commit: %w", err)
	}
	return nil
}

func adjustProblemCount(ctx context.Context, tx *sql.Tx, topicID string, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE topics SET problem_count = GREATEST(problem_count + $2, 0), updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1`, topicID, delta)
	if err != nil {
		return fmt.Errorf("adjust problem_count for topic %s: %w", topicID, err)
	}
	return nil
}

// UpsertProblemBySlug does not touch problem_count; call RecountProblems
// after a batch of upserts.
func (r *pgContentRepository) UpsertProblemBySlug(ctx context.Context, p *model.Problem) error {
	query := `INSERT INTO problems (id, topic_id, title, slug, difficulty, tags, video_url, problem_url, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (slug) DO UPDATE SET topic_id = EXCLUDED.topic_id, title = EXCLUDED.title,
	                 difficulty = EXCLUDED.difficulty, tags = EXCLUDED.tags, video_url = EXCLUDED.video_url,
	                 problem_url = EXCLUDED.problem_url, sort_order = EXCLUDED.sort_order,
	                 updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + problemColumns
	got, err := r.scanProblem(r.db.QueryRowContext(ctx, query, p.ID, p.TopicID, p.Title, p.Slug,
		string(p.Difficulty), p.Tags, p.VideoURL, p.ProblemURL, p.Order))
	if err != nil {
		return writeErr(err, "problem", "pgContentRepository.UpsertProblemBySlug")
	}
	*p = *got
	return nil
}

func (r *pgContentRepository) RecountProblems(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE topics t SET problem_count = (SELECT COUNT(*) FROM problems p WHERE p.topic_id = t.id)`)
	if err != nil {
		return fmt.Errorf("pgContentRepository.RecountProblems: %w", err)
	}
	return nil
}

func (r *pgContentRepository) Stats(ctx context.Context) (*model.Stats, error) {
	s := &model.Stats{}
	err := r.db.QueryRowContext(ctx, `SELECT
	        (SELECT COUNT(*) FROM users),
	        (SELECT COUNT(*) FROM learning_paths),
	        (SELECT COUNT(*) FROM topics),
	        (SELECT COUNT(*) FROM problems),
	        (SELECT COUNT(*) FROM forum_posts)`).
		Scan(&s.Users, &s.Paths, &s.Topics, &s.Problems, &s.Posts)
	if err != nil {
		return nil, fmt.Errorf("pgContentRepository.Stats: %w", err)
	}
	return s, nil
}
