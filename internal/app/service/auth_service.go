package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"algoforge/internal/common"
	"algoforge/internal/common/security"
	"algoforge/internal/domain/model"
	"algoforge/internal/domain/repository"
	"algoforge/internal/platform/logger"

	"github.com/google/uuid"
)

const MinPasswordLength = 6

type AuthService struct {
	userRepo     repository.UserRepository
	progressRepo repository.ProgressRepository
	verifier     security.IdentityVerifier // nil disables Google sign-in
	activity     ActivityRecorder
	log          *logger.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	progressRepo repository.ProgressRepository,
	verifier security.IdentityVerifier,
	activity ActivityRecorder,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		progressRepo: progressRepo,
		verifier:     verifier,
		activity:     activity,
		log:          log.With("service", "auth"),
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	model.UserSummary
	Token string `json:"token"`
}

type GoogleAuthResponse struct {
	AuthResponse
	IsNewUser bool `json:"isNewUser"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("name, email and password are required: %w", common.ErrValidation)
	}
	if !validEmail(email) {
		return nil, fmt.Errorf("email address is malformed: %w", common.ErrValidation)
	}
	if len(req.Password) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, common.ErrValidation)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser,
	}
	// A concurrent registration surfaces here as ErrConflict from the unique index.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user registered", "user_id", user.ID)
	s.recordLogin(ctx, user.ID)

	return s.issue(user)
}

// Login never reveals whether the email or the password was wrong.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", common.ErrValidation)
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrBadCredentials
	}

	s.recordLogin(ctx, user.ID)
	return s.issue(user)
}

// LoginWithGoogle verifies a Google ID token and signs the matching account
// in, creating it on first use. At most one user row is created or updated.
func (s *AuthService) LoginWithGoogle(ctx context.Context, req GoogleLoginRequest) (*GoogleAuthResponse, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, fmt.Errorf("token is required: %w", common.ErrValidation)
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("google sign-in is not configured: %w", common.ErrUpstream)
	}

	identity, err := s.verifier.Verify(ctx, req.Token)
	if err != nil {
		if errors.Is(err, security.ErrProviderUnavailable) {
			s.log.Warn("google verification unavailable", "error", err)
			return nil, fmt.Errorf("google sign-in failed: %w", common.ErrUpstream)
		}
		s.log.Info("google token rejected", "error", err)
		return nil, fmt.Errorf("google token rejected: %w", common.ErrBadCredentials)
	}
	if !identity.EmailVerified {
		return nil, fmt.Errorf("google account email is not verified: %w", common.ErrBadCredentials)
	}
	email := normalizeEmail(identity.Email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID == "" {
			linked, err := s.userRepo.LinkGoogleID(ctx, user.ID, identity.Subject)
			if err != nil {
				return nil, fmt.Errorf("failed to link google account: %w", err)
			}
			if linked {
				user.GoogleID = identity.Subject
				s.log.Info("google account linked", "user_id", user.ID)
			}
		}
		s.recordLogin(ctx, user.ID)
		resp, err := s.issue(user)
		if err != nil {
			return nil, err
		}
		return &GoogleAuthResponse{AuthResponse: *resp}, nil

	case errors.Is(err, common.ErrNotFound):
		name := strings.TrimSpace(identity.Name)
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		user = &model.User{
			ID:       uuid.NewString(),
			Name:     name,
			Email:    email,
			GoogleID: identity.Subject,
			Role:     model.RoleUser,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.log.Info("user registered via google", "user_id", user.ID)
		s.recordLogin(ctx, user.ID)
		resp, err := s.issue(user)
		if err != nil {
			return nil, err
		}
		return &GoogleAuthResponse{AuthResponse: *resp, IsNewUser: true}, nil

	default:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
}

// Authenticate resolves a bearer token to a user id.
func (s *AuthService) Authenticate(tokenString string) (string, error) {
	userID, err := security.ParseToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	return userID, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	solved, err := s.progressRepo.SolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load solved problems: %w", err)
	}
	activity, err := s.userRepo.ActivityLog(ctx, userID, model.ActivityLogLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity log: %w", err)
	}
	return &model.UserProfile{User: *user, SolvedProblems: solved, ActivityLog: activity}, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{UserSummary: user.Summary(), Token: token}, nil
}

func (s *AuthService) recordLogin(ctx context.Context, userID string) {
	s.activity.Record(ctx, model.ActivityEvent{
		UserID:     userID,
		Kind:       model.ActivityLogin,
		OccurredAt: time.Now().UTC(),
	})
}
