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

type ForumRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	// FindPost returns the post with its replies in insertion order.
	FindPost(ctx context.Context, id string) (*model.Post, error)
	// ListPosts returns one page of posts (without replies) and the total
	// number of posts matching category. An empty category matches all.
	ListPosts(ctx context.Context, category string, sort model.ForumSort, limit, offset int) ([]model.Post, int, error)
	AddReply(ctx context.Context, reply *model.Reply) error
	TogglePostLike(ctx context.Context, postID, userID string) (*model.LikeResult, error)
	ToggleReplyLike(ctx context.Context, postID, replyID, userID string) (*model.LikeResult, error)
	SetPinned(ctx context.Context, postID string, pinned bool) error
}

type pgForumRepository struct {
	db   *sql.DB
	tmap *pgtype.Map
}

func NewPgForumRepository(db *sql.DB) ForumRepository {
	return &pgForumRepository{db: db, tmap: pgtype.NewMap()}
}

var postOrderings = map[model.ForumSort]string{
	model.SortLatest:  "p.pinned DESC, p.created_at DESC, p.id DESC",
	model.SortOldest:  "p.created_at ASC, p.id ASC",
	model.SortPopular: "like_count DESC, p.created_at DESC, p.id DESC",
	model.SortActive:  "reply_count DESC, p.created_at DESC, p.id DESC",
}

const postSelect = `
	SELECT p.id, p.title, p.content, p.category, p.tags, p.pinned, p.author_id, u.name, p.created_at,
	       ARRAY(SELECT l.user_id::text FROM forum_post_likes l WHERE l.post_id = p.id ORDER BY l.user_id) AS likes,
	       (SELECT COUNT(*) FROM forum_post_likes l WHERE l.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM forum_replies r WHERE r.post_id = p.id) AS reply_count
	FROM forum_posts p
	JOIN users u ON u.id = p.author_id`

func (r *pgForumRepository) scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Category, r.tmap.SQLScanner(&p.Tags), &p.Pinned,
		&p.Author.ID, &p.Author.Name, &p.CreatedAt, r.tmap.SQLScanner(&p.Likes), &p.LikeCount, &p.ReplyCount)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, err
}

func (r *pgForumRepository) CreatePost(ctx context.Context, post *model.Post) error {
	query := `INSERT INTO forum_posts (id, author_id, title, content, category, tags)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING pinned, created_at`
	err := r.db.QueryRowContext(ctx, query, post.ID, post.Author.ID, post.Title, post.Content, post.Category, post.Tags).
		Scan(&post.Pinned, &post.CreatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return fmt.Errorf("author: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgForumRepository.CreatePost: %w", err)
	}
	return nil
}

func (r *pgForumRepository) FindPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := r.scanPost(r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "post", "pgForumRepository.FindPost")
	}

	query := `
		SELECT r.id, r.post_id, r.author_id, u.name, r.content, r.created_at,
		       ARRAY(SELECT l.user_id::text FROM forum_reply_likes l WHERE l.reply_id = r.id ORDER BY l.user_id)
		FROM forum_replies r
		JOIN users u ON u.id = r.author_id
		WHERE r.post_id = $1
		ORDER BY r.seq`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("pgForumRepository.FindPost replies: %w", err)
	}
	defer rows.Close()

	post.Replies = []model.Reply{}
	for rows.Next() {
		var reply model.Reply
		if err := rows.Scan(&reply.ID, &reply.PostID, &reply.Author.ID, &reply.Author.Name, &reply.Content,
			&reply.CreatedAt, r.tmap.SQLScanner(&reply.Likes)); err != nil {
			return nil, fmt.Errorf("pgForumRepository.FindPost reply scan: %w", err)
		}
		if reply.Likes == nil {
			reply.Likes = []string{}
		}
		reply.LikeCount = len(reply.Likes)
		post.Replies = append(post.Replies, reply)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgForumRepository.FindPost rows.Err: %w", err)
	}
	post.ReplyCount = len(post.Replies)
	return post, nil
}

func (r *pgForumRepository) ListPosts(ctx context.Context, category string, sort model.ForumSort, limit, offset int) ([]model.Post, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forum_posts WHERE ($1 = '' OR category = $1)`, category).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgForumRepository.ListPosts count: %w", err)
	}

	order, ok := postOrderings[sort]
	if !ok {
		order = postOrderings[model.SortLatest]
	}
	query := postSelect + ` WHERE ($1 = '' OR p.category = $1) ORDER BY ` + order + ` LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, category, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgForumRepository.ListPosts query: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := r.scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgForumRepository.ListPosts scan: %w", err)
		}
		posts = append(posts, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgForumRepository.ListPosts rows.Err: %w", err)
	}
	return posts, total, nil
}

func (r *pgForumRepository) AddReply(ctx context.Context, reply *model.Reply) error {
	query := `INSERT INTO forum_replies (id, post_id, author_id, content)
	          VALUES ($1, $2, $3, $4) RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, reply.ID, reply.PostID, reply.Author.ID, reply.Content).Scan(&reply.CreatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) || common.IsInvalidID(err) {
			return fmt.Errorf("post: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgForumRepository.AddReply: %w", err)
	}
	return nil
}

// toggleLike flips (target, user) membership in one statement: the delete
// runs first and the insert only happens when nothing was deleted. The count
// subquery sees the pre-statement snapshot, so the delta is applied here.
func (r *pgForumRepository) toggleLike(ctx context.Context, table, column, targetID, userID string) (*model.LikeResult, error) {
	query := fmt.Sprintf(`
		WITH del AS (
			DELETE FROM %[1]s WHERE %[2]s = $1 AND user_id = $2 RETURNING 1
		), ins AS (
			INSERT INTO %[1]s (%[2]s, user_id)
			SELECT $1::uuid, $2::uuid WHERE NOT EXISTS (SELECT 1 FROM del)
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		SELECT EXISTS (SELECT 1 FROM ins), EXISTS (SELECT 1 FROM del),
		       (SELECT COUNT(*) FROM %[1]s WHERE %[2]s = $1)`, table, column)

	var (
		inserted, deleted bool
		before            int
	)
	if err := r.db.QueryRowContext(ctx, query, targetID, userID).Scan(&inserted, &deleted, &before); err != nil {
		if common.IsForeignKeyViolation(err) || common.IsInvalidID(err) {
			return nil, fmt.Errorf("like target: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgForumRepository.toggleLike %s: %w", table, err)
	}

	likes := before
	switch {
	case inserted:
		likes++
	case deleted:
		likes--
	}
	// Neither branch fired: a concurrent toggle by the same user already
	// inserted the row, so the caller is a member.
	liked := inserted || !deleted
	return &model.LikeResult{Liked: liked, Likes: likes}, nil
}

func (r *pgForumRepository) TogglePostLike(ctx context.Context, postID, userID string) (*model.LikeResult, error) {
	res, err := r.toggleLike(ctx, "forum_post_likes", "post_id", postID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("post: %w", common.ErrNotFound)
	}
	return res, err
}

func (r *pgForumRepository) ToggleReplyLike(ctx context.Context, postID, replyID, userID string) (*model.LikeResult, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM forum_replies WHERE id = $1 AND post_id = $2)`, replyID, postID).Scan(&exists)
	if err != nil && !common.IsInvalidID(err) {
		return nil, fmt.Errorf("pgForumRepository.ToggleReplyLike lookup: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("reply: %w", common.ErrNotFound)
	}
	res, err := r.toggleLike(ctx, "forum_reply_likes", "reply_id", replyID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("reply: %w", common.ErrNotFound)
	}
	return res, err
}

func (r *pgForumRepository) SetPinned(ctx context.Context, postID string, pinned bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE forum_posts SET pinned = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, postID, pinned)
	if err != nil {
		return notFoundOr(err, "post", "pgForumRepository.SetPinned")
	}
	return affectedOne(res, "post")
}
