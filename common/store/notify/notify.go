// Package notify publishes an ingest notification for every record appended
// through it.
package notify

import (
	"context"
	"log/slog"

	"github.com/telhawk-systems/vibration-stack/common/messaging"
	"github.com/telhawk-systems/vibration-stack/common/records"
)

// Store forwards every call to an inner records.Store and, after a
// successful Append, publishes messaging.RecordIngested. Publish failures are
// logged; the record is already durable. Close closes only the inner store.
type Store struct {
	records.Store
	publisher messaging.Publisher
	logger    *slog.Logger
}

// New wraps inner. A nil publisher disables notifications.
func New(inner records.Store, publisher messaging.Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, publisher: publisher, logger: logger}
}

// Append stores rec and announces it.
func (s *Store) Append(ctx context.Context, rec *records.Record) (records.ID, error) {
	id, err := s.Store.Append(ctx, rec)
	if err != nil || s.publisher == nil {
		return id, err
	}

	event := messaging.RecordIngested{
		RecordID:       string(id),
		SensorID:       rec.SensorID,
		Timestamp:      rec.Timestamp,
		SamplingPeriod: float64(rec.SamplingPeriod),
		Samples:        len(rec.Samples),
	}
	if err := s.publisher.PublishJSON(ctx, messaging.RecordsIngestedSubject(rec.SensorID), event); err != nil {
		s.logger.Warn("failed to publish ingest notification",
			slog.String("record_id", string(id)),
			slog.Uint64("sensor_id", uint64(rec.SensorID)),
			slog.String("error", err.Error()))
	}
	return id, nil
}
