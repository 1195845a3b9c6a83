package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"account-directory/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix   = "session:"
	userSessionsPrefix = "user-sessions:"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type sessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration, log *zap.Logger) SessionRepository {
	return &sessionRepository{rdb: rdb, ttl: ttl, log: log}
}

// Create stores the session under its TTL and records it in the owner's
// session index so revocation can find it later.
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, raw, r.ttl)
	pipe.SAdd(ctx, userSessionsPrefix+session.UserID, session.ID)
	pipe.Expire(ctx, userSessionsPrefix+session.UserID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// FindByID returns (nil, nil) when the session does not exist or expired.
func (r *sessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// DeleteByID removes the session and reports how many records were
// removed (0 or 1).
func (r *sessionRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}

	removed, err := r.rdb.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}

	if session != nil {
		if err := r.rdb.SRem(ctx, userSessionsPrefix+session.UserID, id).Err(); err != nil {
			r.log.Warn("failed to prune user session index", zap.String("session_id", id), zap.Error(err))
		}
	}
	return removed, nil
}

// DeleteByUser removes every session recorded for the user.
func (r *sessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	ids, err := r.rdb.SMembers(ctx, userSessionsPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	var removed int64
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = sessionKeyPrefix + id
		}
		removed, err = r.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return 0, fmt.Errorf("revoke user sessions: %w", err)
		}
	}

	if err := r.rdb.Del(ctx, userSessionsPrefix+userID).Err(); err != nil {
		r.log.Warn("failed to drop user session index", zap.String("user_id", userID), zap.Error(err))
	}
	return removed, nil
}
