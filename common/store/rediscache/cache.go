// Package rediscache puts a Redis read-through cache of each sensor's latest
// record in front of another records.Store.
//
// Key structure:
//
//	vibration:latest:{sensor_id} - JSON-encoded latest record (expires after TTL)
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/vibration-stack/common/records"
)

const keyPrefix = "vibration:latest:"

// Config holds cache settings.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Store wraps an inner records.Store. Cache failures are logged and the
// inner store answers instead.
type Store struct {
	inner  records.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Connect parses redisURL, verifies the connection and wraps inner.
func Connect(ctx context.Context, inner records.Store, redisURL string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
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

	return New(inner, client, ttl, logger), nil
}

// New wraps inner with an existing Redis client.
func New(inner records.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return &Store{inner: inner, redis: client, ttl: ttl, logger: logger}
}

func cacheKey(sensorID uint32) string {
	return keyPrefix + strconv.FormatUint(uint64(sensorID), 10)
}

// Append writes to the inner store and invalidates the sensor's cached entry.
func (s *Store) Append(ctx context.Context, rec *records.Record) (records.ID, error) {
	id, err := s.inner.Append(ctx, rec)
	if err != nil {
		return "", err
	}
	if err := s.redis.Del(ctx, cacheKey(rec.SensorID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate cached record",
			slog.Uint64("sensor_id", uint64(rec.SensorID)),
			slog.String("error", err.Error()))
	}
	return id, nil
}

// Latest serves from the cache, falling back to the inner store on a miss.
func (s *Store) Latest(ctx context.Context, sensorID uint32) (*records.Record, error) {
	key := cacheKey(sensorID)

	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec records.Record
		if err := json.Unmarshal(data, &rec); err == nil {
			return &rec, nil
		}
		s.logger.Warn("discarding undecodable cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	rec, err := s.inner.Latest(ctx, sensorID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
	return rec, nil
}

// Exists is true on a cache hit; otherwise the inner store decides.
func (s *Store) Exists(ctx context.Context, sensorID uint32) (bool, error) {
	n, err := s.redis.Exists(ctx, cacheKey(sensorID)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	return s.inner.Exists(ctx, sensorID)
}

// Ping checks the inner store only; a cache outage does not make records unavailable.
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the Redis client and the inner store.
func (s *Store) Close() error {
	return errors.Join(s.redis.Close(), s.inner.Close())
}
