package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ SessionStateRepository = (*redisSessionRepository)(nil)

// NewRedisSessionRepository stores each session as one JSON value.
// A zero ttl keeps sessions forever.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) SessionStateRepository {
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionKey(userID, characterID string) string {
	return fmt.Sprintf("session:%s:%s", userID, characterID)
}

func (r *redisSessionRepository) Get(ctx context.Context, userID, characterID string) (*models.SessionState, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID, characterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to read session", zap.String("user_id", userID), zap.String("character_id", characterID), zap.Error(err))
		return nil, fmt.Errorf("failed to read session from redis: %w", err)
	}
	var s models.SessionState
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.Warn("Discarding malformed session", zap.String("user_id", userID), zap.String("character_id", characterID), zap.Error(err))
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *redisSessionRepository) Save(ctx context.Context, session *models.SessionState) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	key := sessionKey(session.UserID, session.CharacterID)
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save session", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	r.logger.Debug("Session saved", zap.String("key", key), zap.Int("bytes", len(raw)))
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, userID, characterID string) error {
	key := sessionKey(userID, characterID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete session", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
