package sessionrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:sid:"

// RedisRepo is a Redis-backed implementation of the Repo interface, for
// deployments where multiple serverless instances must share session state.
// Expiry is delegated to Redis TTLs.
type RedisRepo struct {
	client *redis.Client
}

// NewRedisRepo constructs a Redis-backed session repository. The client
// lifecycle is managed externally.
func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// Upsert stores or updates a session with a TTL matching its expiry.
func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, session Session) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] marshalling session")
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, payload, ttl).Err()
}

// Get retrieves a session by ID. A missing or expired key is reported as
// ErrNotFound.
func (r *RedisRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.New("sessionID cannot be empty")
	}

	payload, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] redis get")
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, errors.Wrap(err, "[RedisRepo.Get] unmarshalling session")
	}
	return session, nil
}

// Delete removes a session
func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
