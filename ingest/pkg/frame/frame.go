// Package frame implements the vibration sensor wire format.
//
// Every frame is a 20-byte little-endian header, a 2-byte trailer that
// carries no information, and a payload of signed 16-bit little-endian
// samples:
//
//	offset  size  field
//	0       4     sensor_id        uint32
//	4       8     epoch_seconds    uint64
//	12      2     len_time_bytes   uint16
//	14      2     len_freq_bytes   uint16
//	16      4     sampling_period  float32 (seconds)
//	20      2     trailer
//	22      n     payload, n = len_time_bytes + len_freq_bytes
//
// A connection carries any number of frames back to back.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	HeaderSize  = 20
	TrailerSize = 2
	SampleSize  = 2
)

// Header is the fixed part of a frame.
type Header struct {
	SensorID       uint32
	Epoch          uint64
	LenTimeBytes   uint16
	LenFreqBytes   uint16
	SamplingPeriod float32
}

// PayloadLen is the declared payload size in bytes.
func (h Header) PayloadLen() int {
	return int(h.LenTimeBytes) + int(h.LenFreqBytes)
}

// Frame is a decoded header plus its samples.
type Frame struct {
	Header
	Samples []int16
}

// DecodeHeader extracts the header fields from exactly HeaderSize bytes.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, newError(MalformedHeader, fmt.Sprintf("header must be %d bytes, got %d", HeaderSize, len(b)))
	}
	return Header{
		SensorID:       binary.LittleEndian.Uint32(b[0:4]),
		Epoch:          binary.LittleEndian.Uint64(b[4:12]),
		LenTimeBytes:   binary.LittleEndian.Uint16(b[12:14]),
		LenFreqBytes:   binary.LittleEndian.Uint16(b[14:16]),
		SamplingPeriod: math.Float32frombits(binary.LittleEndian.Uint32(b[16:20])),
	}, nil
}

// EncodeHeader is the inverse of DecodeHeader.
func EncodeHeader(h Header) []byte {
	return AppendHeader(make([]byte, 0, HeaderSize), h)
}

// AppendHeader appends the encoded header to b.
func AppendHeader(b []byte, h Header) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.SensorID)
	b = binary.LittleEndian.AppendUint64(b, h.Epoch)
	b = binary.LittleEndian.AppendUint16(b, h.LenTimeBytes)
	b = binary.LittleEndian.AppendUint16(b, h.LenFreqBytes)
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(h.SamplingPeriod))
}

// ValidateLengths checks that the declared payload is a non-empty whole
// number of samples. The two lengths are only checked as a sum.
func ValidateLengths(h Header) error {
	return validateTotal(h.PayloadLen())
}

func validateTotal(total int) error {
	if total <= 0 {
		return newError(InvalidLength, fmt.Sprintf("declared payload length %d is not positive", total))
	}
	if total%SampleSize != 0 {
		return newError(InvalidLength, fmt.Sprintf("declared payload length %d is odd", total))
	}
	return nil
}

// DecodePayload reads total bytes of b as int16 samples. Bytes beyond total
// are ignored.
func DecodePayload(b []byte, total int) ([]int16, error) {
	if err := validateTotal(total); err != nil {
		return nil, err
	}
	if len(b) < total {
		return nil, newError(TruncatedPayload, fmt.Sprintf("expected %d payload bytes, got %d", total, len(b)))
	}

	samples := make([]int16, total/SampleSize)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*SampleSize:]))
	}
	return samples, nil
}

// EncodePayload encodes samples as int16 little-endian bytes.
func EncodePayload(samples []int16) []byte {
	return appendPayload(make([]byte, 0, len(samples)*SampleSize), samples)
}

func appendPayload(b []byte, samples []int16) []byte {
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

// Encode serializes f including a zeroed trailer. The header lengths must
// describe the samples exactly.
func Encode(f *Frame) ([]byte, error) {
	if err := ValidateLengths(f.Header); err != nil {
		return nil, err
	}
	if want := f.PayloadLen(); want != len(f.Samples)*SampleSize {
		return nil, newError(InvalidLength, fmt.Sprintf("header declares %d payload bytes but frame has %d samples", want, len(f.Samples)))
	}

	b := make([]byte, 0, HeaderSize+TrailerSize+f.PayloadLen())
	b = AppendHeader(b, f.Header)
	b = append(b, make([]byte, TrailerSize)...)
	return appendPayload(b, f.Samples), nil
}
