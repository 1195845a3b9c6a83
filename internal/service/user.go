package service

import (
	"context"
	"fmt"
	"strings"

	"account-directory/internal/models"
	"account-directory/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, username, password, email string) (*models.User, error)
	Update(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)
	SetPassword(ctx context.Context, id, password string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	log      *zap.Logger
}

func NewUserService(users repository.UserRepository, sessions repository.SessionRepository, log *zap.Logger) UserService {
	return &userService{users: users, sessions: sessions, log: log}
}

func (s *userService) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.users.PagedFind(ctx, filter)
}

func (s *userService) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// checkUnique runs the ordered username and email checks, skipping the
// record identified by excludeID. The first conflict wins and the email
// check does not run after a username conflict.
func (s *userService) checkUnique(ctx context.Context, username, email, excludeID string) error {
	existing, err := s.users.FindByUsername(ctx, username, excludeID)
	if err != nil {
		return fmt.Errorf("username check: %w", err)
	}
	if existing != nil {
		return models.ErrUsernameInUse
	}

	existing, err = s.users.FindByEmail(ctx, email, excludeID)
	if err != nil {
		return fmt.Errorf("email check: %w", err)
	}
	if existing != nil {
		return models.ErrEmailInUse
	}
	return nil
}

// Create adds a user after the ordered uniqueness checks pass. New users
// start active with the account role and a lower-cased email.
func (s *userService) Create(ctx context.Context, username, password, email string) (*models.User, error) {
	email = strings.ToLower(email)

	if err := s.checkUnique(ctx, username, email, ""); err != nil {
		return nil, err
	}

	hash, err := generatePasswordHash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		Roles:        models.RoleSet{"account": {}},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies the field set after uniqueness checks that exclude the
// target record itself. Deactivating a user revokes their sessions.
func (s *userService) Update(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	update.Email = strings.ToLower(update.Email)

	if err := s.checkUnique(ctx, update.Username, update.Email, id); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateByID(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}

	if update.IsActive != nil && !*update.IsActive {
		s.revokeSessions(ctx, id)
	}
	return user, nil
}

func (s *userService) SetPassword(ctx context.Context, id, password string) (*models.User, error) {
	hash, err := generatePasswordHash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.SetPassword(ctx, id, hash)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

// Delete removes the user and revokes their sessions. Zero removed
// records means the id did not exist.
func (s *userService) Delete(ctx context.Context, id string) error {
	removed, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if removed == 0 {
		return models.ErrUserNotFound
	}

	s.revokeSessions(ctx, id)
	return nil
}

// revokeSessions drops a user's sessions after a deactivation or delete.
// The user write already succeeded, so a revocation failure is logged
// rather than surfaced.
func (s *userService) revokeSessions(ctx context.Context, userID string) {
	if _, err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		s.log.Error("failed to revoke user sessions", zap.String("user_id", userID), zap.Error(err))
	}
}

func generatePasswordHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
