// Package session holds the checkout correlation record that bridges the
// initiating request and the gateway callback. The record is the only state
// shared across the redirect boundary: it is written before the hand-off,
// read once on return and cleared on a terminal outcome.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

// Record carries the identifiers needed to resume verification after the
// customer returns from the gateway, plus the hand-off target so the hand-off
// endpoint can serve the navigation without re-calling the gateway.
type Record struct {
	ProviderRef    string `json:"provider_ref"`
	TransactionUID string `json:"transaction_uid"`
	BookingID      int    `json:"booking_id"`
	HandoffKind    string `json:"handoff_kind,omitempty"`
	PaymentURL     string `json:"payment_url,omitempty"`
}

// Store keeps at most one Record per (checkout session, gateway) pair. Put
// fully overwrites a prior record; partial merges would let stale fields from
// an earlier checkout attempt bleed into a new one.
type Store interface {
	Put(ctx context.Context, sessionID string, method models.PaymentMethod, rec Record) error
	// Get returns nil with no error when no record exists.
	Get(ctx context.Context, sessionID string, method models.PaymentMethod) (*Record, error)
	Clear(ctx context.Context, sessionID string, method models.PaymentMethod) error
	// AcquireVerify claims the one-shot verification token for a correlation
	// id. It returns true exactly once per (session, gateway, correlation id);
	// a second claim means a verify call is already in flight or done.
	AcquireVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) (bool, error)
	// ReleaseVerify returns a claimed token after a failed verification so a
	// later attempt can reach the gateway again. The token only has to
	// collapse concurrent duplicates of the same attempt, not block retries.
	ReleaseVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) error
}

const defaultTTL = time.Hour

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTTL}
}

func recordKey(sessionID string, method models.PaymentMethod) string {
	return fmt.Sprintf("checkout:%s:%s", sessionID, method)
}

func verifyKey(sessionID string, method models.PaymentMethod, correlationID string) string {
	return fmt.Sprintf("checkout:%s:%s:verify:%s", sessionID, method, correlationID)
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, method models.PaymentMethod, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, recordKey(sessionID, method), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID string, method models.PaymentMethod) (*Record, error) {
	data, err := s.client.Get(ctx, recordKey(sessionID, method)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string, method models.PaymentMethod) error {
	return s.client.Del(ctx, recordKey(sessionID, method)).Err()
}

func (s *RedisStore) AcquireVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) (bool, error) {
	return s.client.SetNX(ctx, verifyKey(sessionID, method, correlationID), "1", s.ttl).Result()
}

func (s *RedisStore) ReleaseVerify(ctx context.Context, sessionID string, method models.PaymentMethod, correlationID string) error {
	return s.client.Del(ctx, verifyKey(sessionID, method, correlationID)).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
