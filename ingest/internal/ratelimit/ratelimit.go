// Package ratelimit bounds how often one remote address may open sensor
// connections. Counts live in Redis so every ingest replica shares them.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vibration:ingest:connections:"

// Limiter decides whether a new connection from key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// Config controls connection admission.
type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Limit    int           `mapstructure:"limit"`
	Window   time.Duration `mapstructure:"window"`
}

// New returns a NoOp limiter when disabled, otherwise a Redis limiter that
// has answered a ping.
func New(ctx context.Context, cfg Config) (Limiter, error) {
	if !cfg.Enabled {
		return NoOp{}, nil
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit needs a positive limit and window, got %d per %v", cfg.Limit, cfg.Window)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedis(client, cfg.Limit, cfg.Window), nil
}

// slidingWindow trims entries older than the window, then admits the
// request if fewer than limit remain.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, ARGV[2])
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[5])
	redis.call('PEXPIRE', key, ARGV[4])
	return 1
end
return 0
`)

// Redis is a sliding-window limiter shared through one Redis instance.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
	seq    atomic.Int64
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow records one connection attempt for key.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	// Members must be unique even when two attempts share a timestamp.
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatInt(r.seq.Add(1), 10)

	result, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + key},
		now, now-r.window.Nanoseconds(), r.limit, r.window.Milliseconds(), member).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return result == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// NoOp admits everything.
type NoOp struct{}

func (NoOp) Allow(context.Context, string) (bool, error) { return true, nil }

func (NoOp) Close() error { return nil }
