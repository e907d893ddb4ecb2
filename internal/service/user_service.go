package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// UserService manages accounts.
type UserService struct {
	users   UserStore
	classes ClassStore
	auth    *AuthService
	log     zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, classes ClassStore, auth *AuthService, log zerolog.Logger) *UserService {
	return &UserService{
		users:   users,
		classes: classes,
		auth:    auth,
		log:     log.With().Str("component", "user_service").Logger(),
	}
}

// Create registers an account on behalf of an admin.
func (s *UserService) Create(ctx context.Context, caller model.CallerIdentity, req model.CreateUserRequest) (*model.User, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.Register(ctx, req)
}

// Register creates an account without an authenticated caller. It is used
// by the create-user command. Students must belong to an existing class.
func (s *UserService) Register(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	if req.Role == model.RoleStudent {
		if req.ClassID == nil {
			return nil, fmt.Errorf("student requires class_id: %w", ErrValidation)
		}
		if _, err := s.classes.GetByID(ctx, *req.ClassID); err != nil {
			if isNoRows(err) {
				return nil, fmt.Errorf("class %d: %w", *req.ClassID, ErrNotFound)
			}
			return nil, fmt.Errorf("get class: %w", err)
		}
	} else {
		req.ClassID = nil
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		ClassID:      req.ClassID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("User created")
	return user, nil
}
