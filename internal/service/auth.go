package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"attendance-sync-api/internal/auth"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"

	"github.com/rs/zerolog"
)

// LoginResult is returned to a signed-in operator.
type LoginResult struct {
	Token     string     `json:"token"`
	TokenType string     `json:"tokenType"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

// SessionInfo describes a still-valid token.
type SessionInfo struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService signs operators in and checks their tokens
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.Tokens
	logger zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users repository.UserRepository, tokens *auth.Tokens, logger zerolog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// Login verifies the credentials and issues a token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, apperrors.UnavailableError("token signing", nil)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ValidationError("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn().Str("email", email).Msg("Login failed: unknown email")
			return nil, apperrors.UnauthorizedError("invalid email or password")
		}
		return nil, apperrors.DatabaseError("failed to retrieve user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn().Str("email", email).Msg("Login failed: wrong password")
		return nil, apperrors.UnauthorizedError("invalid email or password")
	}

	token, expires, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, apperrors.InternalError("failed to issue token", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("User logged in")
	return &LoginResult{Token: token, TokenType: "Bearer", ExpiresAt: expires, User: *user}, nil
}

// SessionCheck validates a token and reports who it belongs to.
func (s *AuthService) SessionCheck(_ context.Context, token string) (*SessionInfo, error) {
	if s.tokens == nil {
		return nil, apperrors.UnavailableError("token signing", nil)
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.UnauthorizedError("invalid or expired token")
	}

	info := &SessionInfo{
		Valid:  true,
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
