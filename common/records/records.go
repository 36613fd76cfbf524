// Package records defines the persisted form of a sensor frame and the
// repository contracts shared by the ingest and relay services.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Source.Latest when a sensor has no records.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable marks failures of the backing store itself.
	ErrUnavailable = errors.New("record store unavailable")
)

// ID is the store-assigned record identifier. It is only ever compared for equality.
type ID string

// Record is one stored frame. Records are immutable once appended.
type Record struct {
	ID             ID        `json:"id,omitempty"`
	SensorID       uint32    `json:"sensor_id"`
	Timestamp      uint64    `json:"timestamp"`
	SamplingPeriod float32   `json:"sampling_period"`
	LenTimeBytes   uint16    `json:"len_time_bytes"`
	LenFreqBytes   uint16    `json:"len_freq_bytes"`
	Samples        []int16   `json:"samples"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Sink appends records. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, rec *Record) (ID, error)
}

// Source answers point queries. Implementations must be safe for concurrent use.
type Source interface {
	// Latest returns the record with the highest timestamp for sensorID,
	// or ErrNotFound.
	Latest(ctx context.Context, sensorID uint32) (*Record, error)

	// Exists reports whether at least one record exists for sensorID.
	Exists(ctx context.Context, sensorID uint32) (bool, error)
}

// Store is a full repository backend.
type Store interface {
	Sink
	Source
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable wraps a backend error so callers can match ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
