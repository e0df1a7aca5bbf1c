package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"regdesk/internal/session"
	dErrors "regdesk/pkg/domain-errors"
)

const (
	sessionKeyPrefix   = "session:"
	principalKeyPrefix = "principal_sessions:"

	// maxSessionsPerPrincipal caps the number of sessions loaded per
	// principal to prevent unbounded memory growth.
	maxSessionsPerPrincipal = 100
)

// sessionJSON is the JSON-serializable representation of a Session.
type sessionJSON struct {
	ID                string `json:"id"`
	PrincipalID       string `json:"principal_id"`
	Kind              string `json:"kind"`
	TwoFactorVerified bool   `json:"two_factor_verified"`
	FingerprintHash   string `json:"fingerprint_hash"`
	DeviceDisplayName string `json:"device_display_name"`
	CreatedAt         int64  `json:"created_at"`   // Unix nano
	LastSeenAt        int64  `json:"last_seen_at"` // Unix nano
	ExpiresAt         int64  `json:"expires_at"`   // Unix nano
}

func toJSON(s *session.Session) *sessionJSON {
	return &sessionJSON{
		ID:                s.ID,
		PrincipalID:       s.PrincipalID,
		Kind:              string(s.Kind),
		TwoFactorVerified: s.TwoFactorVerified,
		FingerprintHash:   s.FingerprintHash,
		DeviceDisplayName: s.DeviceDisplayName,
		CreatedAt:         s.CreatedAt.UnixNano(),
		LastSeenAt:        s.LastSeenAt.UnixNano(),
		ExpiresAt:         s.ExpiresAt.UnixNano(),
	}
}

func fromJSON(j *sessionJSON) *session.Session {
	return &session.Session{
		ID:                j.ID,
		PrincipalID:       j.PrincipalID,
		Kind:              session.PrincipalKind(j.Kind),
		TwoFactorVerified: j.TwoFactorVerified,
		FingerprintHash:   j.FingerprintHash,
		DeviceDisplayName: j.DeviceDisplayName,
		CreatedAt:         time.Unix(0, j.CreatedAt),
		LastSeenAt:        time.Unix(0, j.LastSeenAt),
		ExpiresAt:         time.Unix(0, j.ExpiresAt),
	}
}

// RedisStore persists sessions in Redis, keyed by session ID with a TTL
// matching the session expiry, plus a per-principal index set for listing.
// Expiry is enforced by Redis itself, so DeleteExpired only prunes the index.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(toJSON(sess))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "session already expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.ID, data, ttl)
	pipe.SAdd(ctx, principalKeyPrefix+sess.PrincipalID, sess.ID)
	pipe.Expire(ctx, principalKeyPrefix+sess.PrincipalID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		// Malformed payload is treated as absent so callers fail closed.
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "malformed session payload")
	}
	return fromJSON(&j), nil
}

func (s *RedisStore) Update(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(toJSON(sess))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	// KeepTTL is not used: expiry is recomputed so the key always dies with
	// the session.
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *RedisStore) ListByPrincipal(ctx context.Context, principalID string) ([]*session.Session, error) {
	ids, err := s.client.SMembers(ctx, principalKeyPrefix+principalID).Result()
	if err != nil {
		return nil, fmt.Errorf("list principal sessions: %w", err)
	}
	if len(ids) > maxSessionsPerPrincipal {
		ids = ids[:maxSessionsPerPrincipal]
	}

	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.FindByID(ctx, id)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				// Session key expired; prune the index entry.
				s.client.SRem(ctx, principalKeyPrefix+principalID, id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.FindByID(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, principalKeyPrefix+sess.PrincipalID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteByPrincipal(ctx context.Context, principalID string) (int, error) {
	ids, err := s.client.SMembers(ctx, principalKeyPrefix+principalID).Result()
	if err != nil {
		return 0, fmt.Errorf("list principal sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, principalKeyPrefix+principalID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete principal sessions: %w", err)
	}
	return len(ids), nil
}

// DeleteExpired is a no-op for Redis: key TTLs already enforce expiry.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

var _ session.Store = (*RedisStore)(nil)
