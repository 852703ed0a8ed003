package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partscout/backend/internal/domain"
)

const sessionKeyPrefix = "partscout:session:"

// saveScript writes ARGV[2] with a TTL of ARGV[3] ms only when the stored
// session's revision equals ARGV[1]. A missing key has revision 0.
var saveScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local revision = 0
if current then
	revision = tonumber(cjson.decode(current)['revision']) or 0
end
if revision ~= tonumber(ARGV[1]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisSessionStore is a SessionRepository backed by Redis
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store on an existing client
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// NewRedisSessionStoreFromURL connects to redisURL and verifies the connection
func NewRedisSessionStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisSessionStore(client, ttl), nil
}

// Get retrieves a session by ID
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.SearchSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failure: %w", err)
	}

	var session domain.SearchSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

// Save stores the session if the stored revision still equals expectedRevision
func (s *RedisSessionStore) Save(ctx context.Context, session *domain.SearchSession, expectedRevision int64) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}

	saved, err := saveScript.Run(ctx, s.client, []string{sessionKey(session.ID)}, expectedRevision, string(data), s.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis save failure: %w", err)
	}
	if saved == 0 {
		return fmt.Errorf("%w: %s changed since revision %d", domain.ErrStaleSession, session.ID, expectedRevision)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
