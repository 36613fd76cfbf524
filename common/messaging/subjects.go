package messaging

import "strconv"

// Subjects follow the pattern {domain}.{resource}.{action}[.{sensor_id}].
const (
	// SubjectRecordsIngested prefixes per-sensor notifications published after a
	// record has been appended to the store.
	SubjectRecordsIngested = "vibration.records.ingested"

	// SubjectRecordsIngestedAll matches every sensor's ingest notifications.
	SubjectRecordsIngestedAll = SubjectRecordsIngested + ".>"
)

// RecordsIngestedSubject returns the notification subject for one sensor.
// Example: vibration.records.ingested.32417
func RecordsIngestedSubject(sensorID uint32) string {
	return SubjectRecordsIngested + "." + strconv.FormatUint(uint64(sensorID), 10)
}

// RecordIngested is the payload published on RecordsIngestedSubject.
type RecordIngested struct {
	RecordID       string  `json:"record_id" yaml:"record_id"`
	SensorID       uint32  `json:"sensor_id" yaml:"sensor_id"`
	Timestamp      uint64  `json:"timestamp" yaml:"timestamp"`
	SamplingPeriod float64 `json:"sampling_period" yaml:"sampling_period"`
	Samples        int     `json:"samples" yaml:"samples"`
}
