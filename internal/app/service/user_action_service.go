package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"
)

// UserActionService mutates per-user problem state. Every call is keyed by
// the authenticated user and a problem id.
type UserActionService struct {
	progress repository.ProgressRepository
	content  repository.ContentRepository
	activity ActivityRecorder
	log      *logger.Logger
}

func NewUserActionService(
	progress repository.ProgressRepository,
	content repository.ContentRepository,
	activity ActivityRecorder,
	log *logger.Logger,
) *UserActionService {
	return &UserActionService{
		progress: progress,
		content:  content,
		activity: activity,
		log:      log.With("service", "user_actions"),
	}
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// SetStatus accepts any transition; the last write wins.
func (s *UserActionService) SetStatus(ctx context.Context, userID, problemID string, status string) (*model.UserProblemState, error) {
	st := model.ProblemStatus(status)
	if !st.Valid() {
		return nil, fmt.Errorf("status must be one of TODO, ATTEMPTED, SOLVED: %w", common.ErrValidation)
	}

	state, prev, err := s.progress.SetStatus(ctx, userID, problemID, st)
	if err != nil {
		return nil, err
	}

	if st == model.StatusSolved && prev != model.StatusSolved {
		var difficulty model.Difficulty
		if p, err := s.content.FindProblemByID(ctx, problemID); err == nil {
			difficulty = p.Difficulty
		} else {
			s.log.Warn("problem lookup for xp failed", "problem_id", problemID, "error", err)
		}
		s.activity.Record(ctx, model.ActivityEvent{
			UserID:     userID,
			Kind:       model.ActivityProblemSolved,
			XP:         model.XPForDifficulty(difficulty),
			RefID:      problemID,
			OccurredAt: time.Now().UTC(),
		})
	}
	return state, nil
}

// ToggleBookmark flips the flag atomically; two calls restore the original state.
func (s *UserActionService) ToggleBookmark(ctx context.Context, userID, problemID string) (*model.UserProblemState, error) {
	return s.progress.ToggleBookmark(ctx, userID, problemID)
}

func (s *UserActionService) UpdateNotes(ctx context.Context, userID, problemID, notes string) (*model.UserProblemState, error) {
	if utf8.RuneCountInString(notes) > model.MaxNotesLength {
		return nil, fmt.Errorf("notes exceed %d characters: %w", model.MaxNotesLength, common.ErrValidation)
	}
	return s.progress.UpdateNotes(ctx, userID, problemID, notes)
}

func (s *UserActionService) GetProgress(ctx context.Context, userID string) ([]model.UserProblemState, error) {
	return s.progress.ListByUser(ctx, userID)
}
