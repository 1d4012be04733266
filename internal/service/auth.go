package service

import (
	"context"
	"fmt"
	"strings"

	"visionchat/internal/auth"
	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/model"
	"visionchat/internal/repository"
)

// AuthService registers users, checks their credentials and resolves bearer
// tokens back to users.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenIssuer
	logger *logger.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenIssuer, logger *logger.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Signup creates an account. A taken email fails with common.ErrConflict.
func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrBadInput)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s: %w", email, common.ErrConflict)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// The unique index still decides when two signups race.
	user, err := s.users.Create(ctx, email, hash, fullName)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User %d registered", user.ID)
	return user, nil
}

// Login returns a fresh access token. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	if user == nil || !auth.VerifyPassword(password, user.HashedPassword) {
		return "", fmt.Errorf("%w: incorrect email or password", common.ErrUnauthorized)
	}
	return s.tokens.Issue(user.Email)
}

// CurrentUser resolves a bearer token to its user.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	email, err := s.tokens.Authenticate(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user no longer exists", common.ErrUnauthorized)
	}
	return user, nil
}
