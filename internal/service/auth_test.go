package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"account-directory/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

func newAuthService(users *stubUserRepo, sessions *stubSessionRepo) AuthService {
	return NewAuthService(users, sessions, testSecret, time.Hour, zap.NewNop())
}

func activeUser(t *testing.T, id, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		Roles:        models.RoleSet{"account": {}},
	}
}

func TestLoginIssuesTokenForSession(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	var stored *models.Session
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
	}
	sessions := &stubSessionRepo{
		create: func(session *models.Session) error {
			stored = session
			return nil
		},
	}

	got, token, err := newAuthService(users, sessions).Login(context.Background(), "muddy", "dirtandwater")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user, got)
	assert.Equal(t, "u1", stored.UserID)

	claims := &models.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, stored.ID, claims.SessionID)
	assert.Equal(t, "u1", claims.UserID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
	}

	_, _, err := newAuthService(users, &stubSessionRepo{}).Login(context.Background(), "muddy", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	_, _, err := newAuthService(&stubUserRepo{}, &stubSessionRepo{}).Login(context.Background(), "ghost", "anything")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	user.IsActive = false
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
	}

	_, _, err := newAuthService(users, &stubSessionRepo{}).Login(context.Background(), "muddy", "dirtandwater")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLoginSurfacesStoreError(t *testing.T) {
	boom := errors.New("lookup failed")
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return nil, boom },
	}

	_, _, err := newAuthService(users, &stubSessionRepo{}).Login(context.Background(), "muddy", "dirtandwater")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestLogoutRemovesSession(t *testing.T) {
	var deleted string
	sessions := &stubSessionRepo{
		deleteByID: func(id string) (int64, error) {
			deleted = id
			return 1, nil
		},
	}

	err := newAuthService(&stubUserRepo{}, sessions).Logout(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", deleted)
}

func TestLogoutMissReportsNotFound(t *testing.T) {
	sessions := &stubSessionRepo{
		deleteByID: func(id string) (int64, error) { return 0, nil },
	}

	err := newAuthService(&stubUserRepo{}, sessions).Logout(context.Background(), "s1")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestLogoutSurfacesStoreError(t *testing.T) {
	boom := errors.New("remove failed")
	sessions := &stubSessionRepo{
		deleteByID: func(id string) (int64, error) { return 0, boom },
	}

	err := newAuthService(&stubUserRepo{}, sessions).Logout(context.Background(), "s1")
	assert.ErrorIs(t, err, boom)
}

func TestAuthenticateResolvesSessionAndUser(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	var stored *models.Session
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
		findByID:       func(id string) (*models.User, error) { return user, nil },
	}
	sessions := &stubSessionRepo{
		create: func(session *models.Session) error {
			stored = session
			return nil
		},
		findByID: func(id string) (*models.Session, error) {
			if stored != nil && stored.ID == id {
				return stored, nil
			}
			return nil, nil
		},
	}

	svc := newAuthService(users, sessions)
	_, token, err := svc.Login(context.Background(), "muddy", "dirtandwater")
	require.NoError(t, err)

	gotUser, gotSession, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user, gotUser)
	assert.Equal(t, stored, gotSession)
}

func TestAuthenticateRejectsDeletedSession(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
	}
	sessions := &stubSessionRepo{
		findByID: func(id string) (*models.Session, error) { return nil, nil },
	}

	svc := newAuthService(users, sessions)
	_, token, err := svc.Login(context.Background(), "muddy", "dirtandwater")
	require.NoError(t, err)

	_, _, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	user := activeUser(t, "u1", "muddy", "dirtandwater")
	var stored *models.Session
	users := &stubUserRepo{
		findByUsername: func(username, excludeID string) (*models.User, error) { return user, nil },
		findByID: func(id string) (*models.User, error) {
			deactivated := *user
			deactivated.IsActive = false
			return &deactivated, nil
		},
	}
	sessions := &stubSessionRepo{
		create:   func(session *models.Session) error { stored = session; return nil },
		findByID: func(id string) (*models.Session, error) { return stored, nil },
	}

	svc := newAuthService(users, sessions)
	_, token, err := svc.Login(context.Background(), "muddy", "dirtandwater")
	require.NoError(t, err)

	_, _, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	_, _, err := newAuthService(&stubUserRepo{}, &stubSessionRepo{}).Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	claims := &models.Claims{
		SessionID: "s1",
		UserID:    "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, _, err = newAuthService(&stubUserRepo{}, &stubSessionRepo{}).Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
