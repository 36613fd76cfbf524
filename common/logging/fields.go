package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldSensorID   = "sensor_id"
	FieldConnID     = "conn_id"
	FieldSessionID  = "session_id"
	FieldRemoteAddr = "remote_addr"
	FieldRecordID   = "record_id"
	FieldSamples    = "samples"
	FieldError      = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// SensorID returns a slog attribute for a sensor identifier.
func SensorID(id uint32) slog.Attr {
	return slog.Uint64(FieldSensorID, uint64(id))
}

// ConnID returns a slog attribute for an ingest connection ID.
func ConnID(id string) slog.Attr {
	return slog.String(FieldConnID, id)
}

// SessionID returns a slog attribute for a viewer session ID.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// RemoteAddr returns a slog attribute for the peer address.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(FieldRemoteAddr, addr)
}

// RecordID returns a slog attribute for a store-assigned record ID.
func RecordID(id string) slog.Attr {
	return slog.String(FieldRecordID, id)
}

// Samples returns a slog attribute for a sample count.
func Samples(n int) slog.Attr {
	return slog.Int(FieldSamples, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
