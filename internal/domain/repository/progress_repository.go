package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
)

// ProgressRepository stores UserProblemState rows keyed by the
// (user_id, problem_id) primary key. Toggles and note writes are single upserts.
type ProgressRepository interface {
	// SetStatus returns the stored row and the status it replaced ("" when
	// the row did not exist).
	SetStatus(ctx context.Context, userID, problemID string, status model.ProblemStatus) (*model.UserProblemState, model.ProblemStatus, error)
	ToggleBookmark(ctx context.Context, userID, problemID string) (*model.UserProblemState, error)
	UpdateNotes(ctx context.Context, userID, problemID, notes string) (*model.UserProblemState, error)
	ListByUser(ctx context.Context, userID string) ([]model.UserProblemState, error)
	SolvedProblemIDs(ctx context.Context, userID string) ([]string, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

const stateColumns = `user_id, problem_id, status, bookmarked, notes, updated_at`

func scanState(row rowScanner) (*model.UserProblemState, error) {
	s := &model.UserProblemState{}
	var status string
	err := row.Scan(&s.UserID, &s.ProblemID, &status, &s.Bookmarked, &s.Notes, &s.UpdatedAt)
	s.Status = model.ProblemStatus(status)
	return s, err
}

func progressWriteErr(err error, op string) error {
	if common.IsForeignKeyViolation(err) || common.IsInvalidID(err) {
		return fmt.Errorf("problem: %w", common.ErrNotFound)
	}
	return fmt.Errorf("pgProgressRepository.%s: %w", op, err)
}

func (r *pgProgressRepository) SetStatus(ctx context.Context, userID, problemID string, status model.ProblemStatus) (*model.UserProblemState, model.ProblemStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("pgProgressRepository.SetStatus begin: %w", err)
	}
	defer tx.Rollback()

	// Make sure the row exists so the FOR UPDATE below serialises concurrent writers.
	var inserted bool
	err = tx.QueryRowContext(ctx,
		`INSERT INTO user_problem_states (user_id, problem_id, status) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, problem_id) DO NOTHING
		 RETURNING TRUE`, userID, problemID, string(status)).Scan(&inserted)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", progressWriteErr(err, "SetStatus insert")
	}
	if inserted {
		state, err := scanState(tx.QueryRowContext(ctx,
			`SELECT `+stateColumns+` FROM user_problem_states WHERE user_id = $1 AND problem_id = $2`,
			userID, problemID))
		if err != nil {
			return nil, "", fmt.Errorf("pgProgressRepository.SetStatus read: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, "", fmt.Errorf("pgProgressRepository.SetStatus commit: %w", err)
		}
		return state, "", nil
	}

	var prev string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM user_problem_states WHERE user_id = $1 AND problem_id = $2 FOR UPDATE`,
		userID, problemID).Scan(&prev)
	if err != nil {
		return nil, "", fmt.Errorf("pgProgressRepository.SetStatus lock: %w", err)
	}

	state, err := scanState(tx.QueryRowContext(ctx,
		`UPDATE user_problem_states SET status = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = $1 AND problem_id = $2
		 RETURNING `+stateColumns, userID, problemID, string(status)))
	if err != nil {
		return nil, "", fmt.Errorf("pgProgressRepository.SetStatus update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("pgProgressRepository.SetStatus commit: %w", err)
	}
	return state, model.ProblemStatus(prev), nil
}

func (r *pgProgressRepository) ToggleBookmark(ctx context.Context, userID, problemID string) (*model.UserProblemState, error) {
	query := `INSERT INTO user_problem_states (user_id, problem_id, bookmarked) VALUES ($1, $2, TRUE)
	          ON CONFLICT (user_id, problem_id) DO UPDATE
	             SET bookmarked = NOT user_problem_states.bookmarked, updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + stateColumns
	state, err := scanState(r.db.QueryRowContext(ctx, query, userID, problemID))
	if err != nil {
		return nil, progressWriteErr(err, "ToggleBookmark")
	}
	return state, nil
}

func (r *pgProgressRepository) UpdateNotes(ctx context.Context, userID, problemID, notes string) (*model.UserProblemState, error) {
	query := `INSERT INTO user_problem_states (user_id, problem_id, notes) VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, problem_id) DO UPDATE
	             SET notes = EXCLUDED.notes, updated_at = CURRENT_TIMESTAMP
	          RETURNING ` + stateColumns
	state, err := scanState(r.db.QueryRowContext(ctx, query, userID, problemID, notes))
	if err != nil {
		return nil, progressWriteErr(err, "UpdateNotes")
	}
	return state, nil
}

func (r *pgProgressRepository) ListByUser(ctx context.Context, userID string) ([]model.UserProblemState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM user_problem_states WHERE user_id = $1 ORDER BY updated_at DESC, problem_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser query: %w", err)
	}
	defer rows.Close()

	states := []model.UserProblemState{}
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListByUser scan: %w", err)
		}
		states = append(states, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByUser rows.Err: %w", err)
	}
	return states, nil
}

func (r *pgProgressRepository) SolvedProblemIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT problem_id FROM user_problem_states WHERE user_id = $1 AND status = 'SOLVED' ORDER BY updated_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.SolvedProblemIDs query: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.SolvedProblemIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.SolvedProblemIDs rows.Err: %w", err)
	}
	return ids, nil
}
