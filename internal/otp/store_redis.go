package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "regdesk/pkg/domain-errors"
)

const challengeKeyPrefix = "otp_challenge:"

// challengeJSON is the JSON-serializable representation of a Challenge.
type challengeJSON struct {
	Email     string `json:"email"`
	Purpose   string `json:"purpose"`
	CodeHash  []byte `json:"code_hash"`
	Attempts  int    `json:"attempts"`
	Consumed  bool   `json:"consumed"`
	CreatedAt int64  `json:"created_at"` // Unix nano
	ExpiresAt int64  `json:"expires_at"` // Unix nano
}

// RedisStore persists challenges in Redis. A plain SET on the slot key is
// the atomic supersede the single-active-challenge invariant requires; key
// TTLs enforce expiry across instances.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore constructs a Redis-backed challenge store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Upsert(ctx context.Context, c *Challenge) error {
	data, err := json.Marshal(challengeJSON{
		Email:     c.Email,
		Purpose:   string(c.Purpose),
		CodeHash:  c.CodeHash,
		Attempts:  c.Attempts,
		Consumed:  c.Consumed,
		CreatedAt: c.CreatedAt.UnixNano(),
		ExpiresAt: c.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "challenge already expired")
	}
	if err := s.client.Set(ctx, challengeKeyPrefix+c.Key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, email string, purpose Purpose) (*Challenge, error) {
	data, err := s.client.Get(ctx, challengeKeyPrefix+ChallengeKey(email, purpose)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	var j challengeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "malformed challenge payload")
	}
	return &Challenge{
		Email:     j.Email,
		Purpose:   Purpose(j.Purpose),
		CodeHash:  j.CodeHash,
		Attempts:  j.Attempts,
		Consumed:  j.Consumed,
		CreatedAt: time.Unix(0, j.CreatedAt),
		ExpiresAt: time.Unix(0, j.ExpiresAt),
	}, nil
}

// Update rewrites the slot, preserving the original expiry window.
func (s *RedisStore) Update(ctx context.Context, c *Challenge) error {
	return s.Upsert(ctx, c)
}

func (s *RedisStore) Delete(ctx context.Context, email string, purpose Purpose) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+ChallengeKey(email, purpose)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op for Redis: key TTLs already enforce expiry.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

var _ ChallengeStore = (*RedisStore)(nil)
