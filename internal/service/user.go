package service

import (
	"context"
	"errors"
	"strings"

	"attendance-sync-api/internal/auth"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateUserRequest holds the fields of a new operator account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest carries a partial account update; empty fields are left untouched.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

// UserService handles business logic for operator accounts
type UserService struct {
	repo   repository.UserRepository
	logger zerolog.Logger
}

// NewUserService creates a new user service
func NewUserService(repo repository.UserRepository, logger zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func userRepoError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return apperrors.NotFoundError("user")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.New(apperrors.ErrorCodeConflict, "user with this email already exists")
	default:
		return apperrors.DatabaseError("failed to "+action+" user", err)
	}
}

// CreateUser registers an operator with a bcrypt-hashed password.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := validation.Struct(req); fields != nil {
		return nil, apperrors.ValidationErrorWithDetails("invalid user", fields)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	user := model.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, userRepoError(err, "create")
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("email", user.Email).Msg("User created")

	created, err := s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return &user, nil
	}
	return created, nil
}

// ListUsers returns a page of operators
func (s *UserService) ListUsers(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedResult[model.User], error) {
	result, err := s.repo.ListUsers(ctx, params)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to retrieve users", err)
	}
	return result, nil
}

// GetUser retrieves an operator by ID
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, userRepoError(err, "retrieve")
	}
	return user, nil
}

// UpdateUser applies a partial update. A new password is re-hashed.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*model.User, error) {
	if req.Name == nil && req.Email == nil && req.Password == nil {
		return nil, apperrors.BadRequestError("no fields provided to update")
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	if fields := validation.Struct(req); fields != nil {
		return nil, apperrors.ValidationErrorWithDetails("invalid user", fields)
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, userRepoError(err, "retrieve")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, apperrors.ValidationError(err.Error())
		}
		user.PasswordHash = hash
	}

	if err := s.repo.UpdateUser(ctx, *user); err != nil {
		return nil, userRepoError(err, "update")
	}

	s.logger.Info().Str("user_id", id.String()).Msg("User updated")
	return user, nil
}

// DeleteUser removes an operator account
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return userRepoError(err, "delete")
	}
	s.logger.Info().Str("user_id", id.String()).Msg("User deleted")
	return nil
}
