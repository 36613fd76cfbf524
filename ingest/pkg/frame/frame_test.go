package frame

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioA is sensor 32417, epoch 1700000000, 8 time bytes, period 1/32000,
// samples [100, -100, 100, -100].
var scenarioA = []byte{
	0xA1, 0x7E, 0x00, 0x00, // sensor_id
	0x00, 0xF1, 0x53, 0x65, 0x00, 0x00, 0x00, 0x00, // epoch
	0x08, 0x00, // len_time_bytes
	0x00, 0x00, // len_freq_bytes
	0x6F, 0x12, 0x03, 0x38, // sampling_period
	0x00, 0x00, // trailer
	0x64, 0x00, 0x9C, 0xFF, 0x64, 0x00, 0x9C, 0xFF, // payload
}

func TestDecodeHeader_ScenarioA(t *testing.T) {
	h, err := DecodeHeader(scenarioA[:HeaderSize])
	require.NoError(t, err)

	assert.Equal(t, uint32(32417), h.SensorID)
	assert.Equal(t, uint64(1700000000), h.Epoch)
	assert.Equal(t, uint16(8), h.LenTimeBytes)
	assert.Equal(t, uint16(0), h.LenFreqBytes)
	assert.Equal(t, float32(1.0/32000), h.SamplingPeriod)
	assert.Equal(t, 8, h.PayloadLen())

	samples, err := DecodePayload(scenarioA[HeaderSize+TrailerSize:], h.PayloadLen())
	require.NoError(t, err)
	assert.Equal(t, []int16{100, -100, 100, -100}, samples)
}

func TestReader_ScenarioA(t *testing.T) {
	r := NewReader(bytes.NewReader(scenarioA))

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, uint32(32417), f.SensorID)
	assert.Equal(t, []int16{100, -100, 100, -100}, f.Samples)

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestHeader_RoundTrip(t *testing.T) {
	headers := []Header{
		{},
		{SensorID: 32417, Epoch: 1700000000, LenTimeBytes: 8, SamplingPeriod: 1.0 / 32000},
		{SensorID: math.MaxUint32, Epoch: math.MaxUint64, LenTimeBytes: math.MaxUint16, LenFreqBytes: math.MaxUint16, SamplingPeriod: math.MaxFloat32},
		{SensorID: 0x7EA2, Epoch: 1, LenTimeBytes: 32768, LenFreqBytes: 2, SamplingPeriod: -0.5},
	}

	for _, h := range headers {
		b := EncodeHeader(h)
		require.Len(t, b, HeaderSize)

		got, err := DecodeHeader(b)
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
}

func TestDecodeHeader_WrongSize(t *testing.T) {
	for _, n := range []int{0, 19, 21} {
		_, err := DecodeHeader(make([]byte, n))
		assert.ErrorIs(t, err, ErrMalformedHeader)
	}
}

func TestValidateLengths(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		wantErr bool
	}{
		{name: "time only", header: Header{LenTimeBytes: 8}},
		{name: "freq only", header: Header{LenFreqBytes: 2}},
		{name: "odd parts even sum", header: Header{LenTimeBytes: 3, LenFreqBytes: 1}},
		{name: "zero", header: Header{}, wantErr: true},
		{name: "odd sum", header: Header{LenTimeBytes: 4, LenFreqBytes: 1}, wantErr: true},
		{name: "max sum", header: Header{LenTimeBytes: math.MaxUint16, LenFreqBytes: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLengths(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLength)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name  string
		bytes int
		total int
		want  error
	}{
		{name: "short by one sample", bytes: 6, total: 8, want: ErrTruncatedPayload},
		{name: "empty input", bytes: 0, total: 2, want: ErrTruncatedPayload},
		{name: "odd total", bytes: 8, total: 7, want: ErrInvalidLength},
		{name: "zero total", bytes: 8, total: 0, want: ErrInvalidLength},
		{name: "negative total", bytes: 8, total: -2, want: ErrInvalidLength},
		{name: "exact", bytes: 8, total: 8},
		{name: "extra bytes ignored", bytes: 10, total: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := DecodePayload(make([]byte, tt.bytes), tt.total)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, samples)
				return
			}
			require.NoError(t, err)
			assert.Len(t, samples, tt.total/SampleSize)
		})
	}
}

func TestFramingError_KindsAreDistinct(t *testing.T) {
	err := newError(TruncatedPayload, "x")
	assert.ErrorIs(t, err, ErrTruncatedPayload)
	assert.NotErrorIs(t, err, ErrInvalidLength)
	assert.NotErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, "TruncatedPayload: x", err.Error())

	var fe *FramingError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, TruncatedPayload, fe.Kind)
}

func TestEncode(t *testing.T) {
	f := &Frame{
		Header:  Header{SensorID: 32417, Epoch: 1700000000, LenTimeBytes: 8, SamplingPeriod: 1.0 / 32000},
		Samples: []int16{100, -100, 100, -100},
	}
	b, err := Encode(f)
	require.NoError(t, err)
	assert.Equal(t, scenarioA, b)

	f.Samples = f.Samples[:3]
	_, err = Encode(f)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestPayload_RoundTrip(t *testing.T) {
	samples := []int16{math.MinInt16, -1, 0, 1, math.MaxInt16}
	b := EncodePayload(samples)
	got, err := DecodePayload(b, len(b))
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}
