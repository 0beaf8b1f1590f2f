package service

import (
	"context"

	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

type LeaderboardService struct {
	board ScoreBoard
	users repository.UserRepository
	log   *logger.Logger
}

func NewLeaderboardService(board ScoreBoard, users repository.UserRepository, log *logger.Logger) *LeaderboardService {
	return &LeaderboardService{board: board, users: users, log: log.With("service", "leaderboard")}
}

// Top returns the highest-XP users. It reads the Redis projection and falls
// back to Postgres when the projection is unavailable or empty.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	var entries []model.LeaderboardEntry
	if s.board != nil {
		var err error
		entries, err = s.board.Top(ctx, limit)
		if err != nil {
			s.log.Warn("leaderboard projection unavailable", "error", err)
			entries = nil
		}
	}
	if len(entries) == 0 {
		return s.fromDatabase(ctx, limit)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	out := make([]model.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.UserID]
		if !ok {
			continue
		}
		e.Name = name
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, nil
}

func (s *LeaderboardService) fromDatabase(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	users, err := s.users.TopByXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		out = append(out, model.LeaderboardEntry{Rank: i + 1, UserID: u.ID, Name: u.Name, XP: u.XP})
	}
	return out, nil
}

// Rebuild replaces the projection with users.xp. It repairs drift left by
// failed leaderboard updates and returns the number of users written.
func (s *LeaderboardService) Rebuild(ctx context.Context) (int, error) {
	if s.board == nil {
		return 0, nil
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, err
	}
	scores := make(map[string]int, len(users))
	for _, u := range users {
		scores[u.ID] = u.XP
	}
	if err := s.board.Reset(ctx, scores); err != nil {
		return 0, err
	}
	s.log.Info("leaderboard rebuilt", "users", len(scores))
	return len(scores), nil
}
