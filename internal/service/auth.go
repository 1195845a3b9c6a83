package service

import (
	"context"
	"fmt"
	"time"

	"account-directory/internal/models"
	"account-directory/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.User, string, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

type authService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	jwtSecret []byte
	ttl       time.Duration
	log       *zap.Logger
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, jwtSecret []byte, ttl time.Duration, log *zap.Logger) AuthService {
	return &authService{
		users:     users,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		log:       log,
	}
}

// Login verifies the credentials, creates a session and returns a signed
// bearer token naming it. Unknown users, inactive accounts and wrong
// passwords are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username, "")
	if err != nil {
		return nil, "", fmt.Errorf("look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", models.ErrInvalidCredentials
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	now := time.Now()
	claims := &models.Claims{
		SessionID: session.ID,
		UserID:    user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.log.Info("user logged in", zap.String("username", user.Username))
	return user, token, nil
}

// Logout deletes the session. Zero removed records means the session was
// already gone.
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	removed, err := s.sessions.DeleteByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// Authenticate resolves a bearer token to its live session and user. The
// signature check alone is not enough: the session must still exist and
// the user must still be active.
func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, nil, models.ErrInvalidCredentials
	}

	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.UserID != claims.UserID {
		return nil, nil, models.ErrInvalidCredentials
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("find session user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, nil, models.ErrInvalidCredentials
	}

	return user, session, nil
}
