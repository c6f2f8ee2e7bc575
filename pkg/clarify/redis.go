package clarify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oceanbase/trinity-go/pkg/knowledge"
)

const redisKeyPrefix = "trinity:clarify:"

// RedisConfig configures a Redis store.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	URL string
	TTL time.Duration
}

// Redis stores clarifications in Redis with a per-key TTL, so pending
// clarifications survive restarts and are shared between server replicas.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) key(uid, topic string) string {
	return redisKeyPrefix + uid + ":" + topic
}

// Put implements Store.
func (r *Redis) Put(ctx context.Context, uid string, c *knowledge.Clarification) (*Pending, error) {
	p := &Pending{ID: uuid.NewString(), UID: uid, Clarification: *c, CreatedAt: time.Now()}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clarification: %w", err)
	}
	if err := r.client.Set(ctx, r.key(uid, c.Topic), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store clarification: %w", err)
	}
	return p, nil
}

// Take implements Store. GETDEL makes the read and removal atomic, so two
// concurrent follow-ups cannot both resume the same clarification.
func (r *Redis) Take(ctx context.Context, uid, topic string) (*Pending, error) {
	data, err := r.client.GetDel(ctx, r.key(uid, topic)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to take clarification: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clarification: %w", err)
	}
	return &p, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
