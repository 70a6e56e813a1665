package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV is the subset of go-redis the session persister needs.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient returns a go-redis client from URL (e.g., redis://localhost:6379/0)
// after a short ping.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisPersister keeps the session under one key per API origin.
type RedisPersister struct {
	client RedisKV
	key    string
	now    func() time.Time
}

// NewRedisPersister scopes the stored session to origin.
func NewRedisPersister(client RedisKV, origin string) *RedisPersister {
	return &RedisPersister{
		client: client,
		key:    SessionRedisKey(origin),
		now:    time.Now,
	}
}

// SessionRedisKey returns the key used for origin.
func SessionRedisKey(origin string) string {
	if origin == "" {
		origin = "default"
	}
	return "kakariko:session:" + origin
}

func (p *RedisPersister) Load(ctx context.Context) (Session, error) {
	val, err := p.client.Get(ctx, p.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("redis get %s: %w", p.key, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return Session{}, fmt.Errorf("decode stored session: %w", err)
	}
	return sess, nil
}

// Save stores the session; the key expires with the session when the expiry is known.
func (p *RedisPersister) Save(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if s.ExpiresAt != nil {
		if left := s.ExpiresAt.Sub(p.now()); left > 0 {
			ttl = left
		}
	}
	return p.client.Set(ctx, p.key, data, ttl).Err()
}

func (p *RedisPersister) Remove(ctx context.Context) error {
	return p.client.Del(ctx, p.key).Err()
}
