// Package postgres stores sensor records in PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/vibration-stack/common/records"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const queryTimeout = 5 * time.Second

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ConnString builds a postgres:// URL accepted by both pgx and golang-migrate.
func (c Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Migrate applies the embedded schema migrations.
func Migrate(connString string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Store is a records.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, connString string, maxConns int32) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, records.Unavailable("connect", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, records.Unavailable("ping", err)
	}

	return &Store{pool: pool}, nil
}

// Append inserts rec and returns its generated UUIDv7.
func (s *Store) Append(ctx context.Context, rec *records.Record) (records.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}

	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	samples := rec.Samples
	if samples == nil {
		samples = []int16{}
	}

	query := `
		INSERT INTO sensor_records
		(id, sensor_id, timestamp, sampling_period, len_time_bytes, len_freq_bytes, samples, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		id.String(),
		int64(rec.SensorID),
		int64(rec.Timestamp),
		rec.SamplingPeriod,
		int32(rec.LenTimeBytes),
		int32(rec.LenFreqBytes),
		samples,
		receivedAt,
	)
	if err != nil {
		return "", records.Unavailable("append", err)
	}

	return records.ID(id.String()), nil
}

// Latest returns the record with the highest timestamp for sensorID.
func (s *Store) Latest(ctx context.Context, sensorID uint32) (*records.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id::text, sensor_id, timestamp, sampling_period, len_time_bytes, len_freq_bytes, samples, received_at
		FROM sensor_records
		WHERE sensor_id = $1
		ORDER BY timestamp DESC, received_at DESC
		LIMIT 1
	`

	var (
		id               string
		sensor, ts       int64
		lenTime, lenFreq int32
		rec              records.Record
	)
	err := s.pool.QueryRow(ctx, query, int64(sensorID)).Scan(
		&id,
		&sensor,
		&ts,
		&rec.SamplingPeriod,
		&lenTime,
		&lenFreq,
		&rec.Samples,
		&rec.ReceivedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, records.ErrNotFound
		}
		return nil, records.Unavailable("latest", err)
	}

	rec.ID = records.ID(id)
	rec.SensorID = uint32(sensor)
	rec.Timestamp = uint64(ts)
	rec.LenTimeBytes = uint16(lenTime)
	rec.LenFreqBytes = uint16(lenFreq)
	return &rec, nil
}

// Exists reports whether sensorID has at least one record.
func (s *Store) Exists(ctx context.Context, sensorID uint32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sensor_records WHERE sensor_id = $1)`,
		int64(sensorID),
	).Scan(&exists)
	if err != nil {
		return false, records.Unavailable("exists", err)
	}
	return exists, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return records.Unavailable("ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
