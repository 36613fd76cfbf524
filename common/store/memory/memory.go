// Package memory is an in-process record store for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/telhawk-systems/vibration-stack/common/records"
)

// Store keeps every record in memory, grouped by sensor.
type Store struct {
	mu      sync.RWMutex
	sensors map[uint32][]*records.Record
	closed  bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{sensors: make(map[uint32][]*records.Record)}
}

// Append stores a copy of rec under a fresh UUIDv7.
func (s *Store) Append(ctx context.Context, rec *records.Record) (records.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", records.Unavailable("append", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", records.Unavailable("append", err)
	}

	stored := *rec
	stored.ID = records.ID(id.String())
	stored.Samples = append([]int16(nil), rec.Samples...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", records.Unavailable("append", errClosed)
	}
	s.sensors[rec.SensorID] = append(s.sensors[rec.SensorID], &stored)
	return stored.ID, nil
}

// Latest returns the record with the highest timestamp; ties go to the
// most recently appended record.
func (s *Store) Latest(ctx context.Context, sensorID uint32) (*records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, records.Unavailable("latest", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, records.Unavailable("latest", errClosed)
	}

	var latest *records.Record
	for _, rec := range s.sensors[sensorID] {
		if latest == nil || rec.Timestamp >= latest.Timestamp {
			latest = rec
		}
	}
	if latest == nil {
		return nil, records.ErrNotFound
	}
	out := *latest
	return &out, nil
}

// Exists reports whether sensorID has any record.
func (s *Store) Exists(ctx context.Context, sensorID uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, records.Unavailable("exists", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, records.Unavailable("exists", errClosed)
	}
	return len(s.sensors[sensorID]) > 0, nil
}

// Count returns the number of records stored for sensorID.
func (s *Store) Count(sensorID uint32) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sensors[sensorID])
}

// Ping fails once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return records.Unavailable("ping", errClosed)
	}
	return ctx.Err()
}

// Close makes every later call fail with ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var errClosed = errors.New("memory store closed")
