package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fitforge/fitforge/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore is the Redis-backed Store backend for multi-instance
// deployments.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// RedisConfig configures the Redis history backend.
type RedisConfig struct {
	Host     string
	Password string
	DB       int
	TTL      time.Duration
	MaxTurns int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 15
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().Str("host", cfg.Host).Msg("redis history store connected")

	return &RedisStore{
		client:   client,
		ttl:      cfg.TTL,
		maxTurns: cfg.MaxTurns,
	}, nil
}

func historyKey(userID string) string {
	return "fitforge:history:" + userID
}

// Get returns the stored history for a user, empty when none.
func (s *RedisStore) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	raw, err := s.client.Get(ctx, historyKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("history get failed: %w", err)
	}

	var msgs []models.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("history decode failed: %w", err)
	}

	return msgs, nil
}

// Set replaces the stored history for a user, keeping only the newest
// maxTurns messages.
func (s *RedisStore) Set(ctx context.Context, userID string, msgs []models.ChatMessage) error {
	if len(msgs) > s.maxTurns {
		msgs = msgs[len(msgs)-s.maxTurns:]
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("history encode failed: %w", err)
	}

	if err := s.client.Set(ctx, historyKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("history set failed: %w", err)
	}

	return nil
}

// Clear removes the stored history for a user.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("history clear failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
