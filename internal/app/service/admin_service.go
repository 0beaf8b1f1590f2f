package service

import (
	"context"
	"fmt"

	"algoforge/internal/common"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"
)

type AdminService struct {
	users   repository.UserRepository
	content repository.ContentRepository
	log     *logger.Logger
}

func NewAdminService(users repository.UserRepository, content repository.ContentRepository, log *logger.Logger) *AdminService {
	return &AdminService{users: users, content: content, log: log.With("service", "admin")}
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.content.Stats(ctx)
}

func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *AdminService) SetRole(ctx context.Context, userID, role string) (*model.User, error) {
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, fmt.Errorf("role must be %q or %q: %w", model.RoleUser, model.RoleAdmin, common.ErrValidation)
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.log.Info("user role changed", "user_id", userID, "role", role)
	return s.users.FindByID(ctx, userID)
}

// IsAdmin reports whether userID currently holds the admin role. Tokens carry
// only the user id, so the role is read from storage on every check.
func (s *AdminService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}
