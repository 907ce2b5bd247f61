package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"digital-will/common/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

// RedisClient cache and lease helper over go-redis
type RedisClient struct {
	client   *redis.Client
	cacheTTL time.Duration
}

var ErrCacheMiss = errors.New("cache miss")

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Named("redis").Info("Redis connected successfully",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)), zap.Int("db", cfg.DB),
		zap.Duration("cache_ttl", cfg.CacheTTL))
	return NewRedisClientFrom(client, cfg.CacheTTL), nil
}

// NewRedisClientFrom wraps an existing go-redis client
func NewRedisClientFrom(client *redis.Client, cacheTTL time.Duration) *RedisClient {
	return &RedisClient{client: client, cacheTTL: cacheTTL}
}

// Close close Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// SetCache set cache with the configured TTL
func (r *RedisClient) SetCache(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	return r.client.Set(ctx, key, data, r.cacheTTL).Err()
}

// GetCache get cache by key, ErrCacheMiss when absent
func (r *RedisClient) GetCache(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return nil
}

var renewLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// AcquireLease takes or renews key for owner. Returns false while another
// owner holds it.
func (r *RedisClient) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return r.RenewLease(ctx, key, owner, ttl)
}

// RenewLease extends key only while owner still holds it. False means the
// lease expired or was taken over.
func (r *RedisClient) RenewLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	renewed, err := renewLeaseScript.Run(ctx, r.client, []string{key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return renewed == 1, nil
}

// ReleaseLease drops key if owner still holds it
func (r *RedisClient) ReleaseLease(ctx context.Context, key, owner string) error {
	return releaseLeaseScript.Run(ctx, r.client, []string{key}, owner).Err()
}
