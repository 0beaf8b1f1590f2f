package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// LinkGoogleID sets the external id only when none is stored yet and
	// reports whether a row changed.
	LinkGoogleID(ctx context.Context, userID, googleID string) (bool, error)
	UpdateRole(ctx context.Context, userID, role string) error
	TopByXP(ctx context.Context, limit int) ([]model.User, error)

	// ApplyActivity appends the event to the log, adds its XP and advances
	// the streak in one transaction.
	ApplyActivity(ctx context.Context, event model.ActivityEvent) (*model.User, error)
	ActivityLog(ctx context.Context, userID string, limit int) ([]model.ActivityEntry, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, name, email, hashed_password, COALESCE(google_id, ''), role, xp, streak,
	last_active_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var lastActive sql.NullTime
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.HashedPassword, &user.GoogleID, &user.Role,
		&user.XP, &user.Streak, &lastActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActive.Valid {
		t := lastActive.Time
		user.LastActiveAt = &t
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, name, email, hashed_password, google_id, role)
	          VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.HashedPassword, user.GoogleID, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || common.IsInvalidID(err) {
			return nil, fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email = $1", email)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) queryUsers(ctx context.Context, op, query string, args ...interface{}) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s query: %w", op, err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pgUserRepository.%s scan: %w", op, err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.%s rows.Err: %w", op, err)
	}
	return users, nil
}

func (r *pgUserRepository) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	return r.queryUsers(ctx, "FindByIDs",
		`SELECT `+userColumns+` FROM users WHERE id::text = ANY($1)`, ids)
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	return r.queryUsers(ctx, "List", `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

func (r *pgUserRepository) TopByXP(ctx context.Context, limit int) ([]model.User, error) {
	return r.queryUsers(ctx, "TopByXP",
		`SELECT `+userColumns+` FROM users WHERE xp > 0 ORDER BY xp DESC, created_at, id LIMIT $1`, limit)
}

func (r *pgUserRepository) LinkGoogleID(ctx context.Context, userID, googleID string) (bool, error) {
	query := `UPDATE users SET google_id = $2, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $1 AND (google_id IS NULL OR google_id = '')`
	res, err := r.db.ExecContext(ctx, query, userID, googleID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return false, fmt.Errorf("google account already linked to another user: %w", common.ErrConflict)
		}
		return false, fmt.Errorf("pgUserRepository.LinkGoogleID: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgUserRepository.LinkGoogleID rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgUserRepository) UpdateRole(ctx context.Context, userID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, userID, role)
	if err != nil {
		if common.IsInvalidID(err) {
			return fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgUserRepository.UpdateRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", common.ErrNotFound)
	}
	return nil
}

func (r *pgUserRepository) ApplyActivity(ctx context.Context, event model.ActivityEvent) (*model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ApplyActivity begin: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	var (
		streak     int
		lastActive sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT streak, last_active_at FROM users WHERE id = $1 FOR UPDATE`, event.UserID,
	).Scan(&streak, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || common.IsInvalidID(err) {
			return nil, fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgUserRepository.ApplyActivity lock: %w", err)
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	var prev *time.Time
	if lastActive.Valid {
		prev = &lastActive.Time
	}
	next := model.NextStreak(prev, streak, occurred)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_activity (user_id, kind, xp, ref_id, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		event.UserID, string(event.Kind), event.XP, event.RefID, occurred)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ApplyActivity log: %w", err)
	}

	user, err := scanUser(tx.QueryRowContext(ctx,
		`UPDATE users SET xp = xp + $2, streak = $3,
		        last_active_at = GREATEST(COALESCE(last_active_at, $4), $4),
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1
		 RETURNING `+userColumns,
		event.UserID, event.XP, next, occurred))
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ApplyActivity update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.ApplyActivity commit: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) ActivityLog(ctx context.Context, userID string, limit int) ([]model.ActivityEntry, error) {
	query := `SELECT kind, xp, ref_id, occurred_at FROM user_activity
	          WHERE user_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.ActivityLog query: %w", err)
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.Kind, &e.XP, &e.RefID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("pgUserRepository.ActivityLog scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgUserRepository.ActivityLog rows.Err: %w", err)
	}
	return entries, nil
}
