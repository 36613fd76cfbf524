// Package opensearch stores sensor records as documents in an OpenSearch index.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/telhawk-systems/vibration-stack/common/records"
)

// Config holds OpenSearch connection and index settings.
type Config struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	Index         string `mapstructure:"index"`
	// Refresh is passed to every index request ("false", "true" or "wait_for").
	Refresh string `mapstructure:"refresh"`
}

// DefaultConfig returns sensible defaults for a local single-node cluster.
func DefaultConfig() Config {
	return Config{
		URL:           "https://localhost:9200",
		Username:      "admin",
		Password:      "admin",
		TLSSkipVerify: true,
		Index:         "vibration-records",
		Refresh:       "false",
	}
}

// Store is a records.Store backed by OpenSearch.
type Store struct {
	client *opensearch.Client
	config Config
}

// document is the indexed form of a record; the record ID is the document _id.
type document struct {
	SensorID       uint32    `json:"sensor_id"`
	Timestamp      uint64    `json:"timestamp"`
	SamplingPeriod float32   `json:"sampling_period"`
	LenTimeBytes   uint16    `json:"len_time_bytes"`
	LenFreqBytes   uint16    `json:"len_freq_bytes"`
	Samples        []int16   `json:"samples"`
	ReceivedAt     time.Time `json:"received_at"`
}

// New creates a client. It does not contact the cluster; call Initialize.
func New(cfg Config) (*Store, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Store{client: client, config: cfg}, nil
}

// Initialize creates the records index with its mapping when missing.
func (s *Store) Initialize(ctx context.Context) error {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{s.config.Index}}.Do(ctx, s.client)
	if err != nil {
		return records.Unavailable("index exists", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"sensor_id":       map[string]any{"type": "long"},
				"timestamp":       map[string]any{"type": "long"},
				"sampling_period": map[string]any{"type": "float"},
				"len_time_bytes":  map[string]any{"type": "integer"},
				"len_freq_bytes":  map[string]any{"type": "integer"},
				"samples":         map[string]any{"type": "short", "index": false, "doc_values": false},
				"received_at":     map[string]any{"type": "date"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err = opensearchapi.IndicesCreateRequest{
		Index: s.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return records.Unavailable("create index", err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(readAll(res.Body), "resource_already_exists_exception") {
		return records.Unavailable("create index", fmt.Errorf("opensearch returned %s", res.Status()))
	}
	return nil
}

// Append indexes rec and returns the document _id assigned by OpenSearch.
func (s *Store) Append(ctx context.Context, rec *records.Record) (records.ID, error) {
	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	body, err := json.Marshal(document{
		SensorID:       rec.SensorID,
		Timestamp:      rec.Timestamp,
		SamplingPeriod: rec.SamplingPeriod,
		LenTimeBytes:   rec.LenTimeBytes,
		LenFreqBytes:   rec.LenFreqBytes,
		Samples:        rec.Samples,
		ReceivedAt:     receivedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	res, err := opensearchapi.IndexRequest{
		Index:   s.config.Index,
		Body:    bytes.NewReader(body),
		Refresh: s.config.Refresh,
	}.Do(ctx, s.client)
	if err != nil {
		return "", records.Unavailable("append", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", records.Unavailable("append", fmt.Errorf("opensearch returned %s: %s", res.Status(), readAll(res.Body)))
	}

	var indexed struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&indexed); err != nil {
		return "", records.Unavailable("append", fmt.Errorf("failed to decode index response: %w", err))
	}
	return records.ID(indexed.ID), nil
}

// Latest returns the newest document for sensorID.
func (s *Store) Latest(ctx context.Context, sensorID uint32) (*records.Record, error) {
	query := map[string]any{
		"size":  1,
		"query": map[string]any{"term": map[string]any{"sensor_id": sensorID}},
		"sort": []map[string]any{
			{"timestamp": map[string]any{"order": "desc"}},
			{"received_at": map[string]any{"order": "desc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{s.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, records.Unavailable("latest", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, records.ErrNotFound
	}
	if res.IsError() {
		return nil, records.Unavailable("latest", fmt.Errorf("opensearch returned %s", res.Status()))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, records.Unavailable("latest", fmt.Errorf("failed to decode search response: %w", err))
	}
	if len(result.Hits.Hits) == 0 {
		return nil, records.ErrNotFound
	}

	hit := result.Hits.Hits[0]
	return &records.Record{
		ID:             records.ID(hit.ID),
		SensorID:       hit.Source.SensorID,
		Timestamp:      hit.Source.Timestamp,
		SamplingPeriod: hit.Source.SamplingPeriod,
		LenTimeBytes:   hit.Source.LenTimeBytes,
		LenFreqBytes:   hit.Source.LenFreqBytes,
		Samples:        hit.Source.Samples,
		ReceivedAt:     hit.Source.ReceivedAt,
	}, nil
}

// Exists counts the sensor's documents.
func (s *Store) Exists(ctx context.Context, sensorID uint32) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"sensor_id": sensorID}},
	})
	if err != nil {
		return false, err
	}

	res, err := opensearchapi.CountRequest{
		Index: []string{s.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return false, records.Unavailable("exists", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, records.Unavailable("exists", fmt.Errorf("opensearch returned %s", res.Status()))
	}

	var count struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&count); err != nil {
		return false, records.Unavailable("exists", fmt.Errorf("failed to decode count response: %w", err))
	}
	return count.Count > 0, nil
}

// Ping checks cluster reachability.
func (s *Store) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, s.client)
	if err != nil {
		return records.Unavailable("ping", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return records.Unavailable("ping", fmt.Errorf("opensearch returned %s", res.Status()))
	}
	return nil
}

// Close is a no-op; the HTTP transport is released with the process.
func (s *Store) Close() error {
	return nil
}

func readAll(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}
