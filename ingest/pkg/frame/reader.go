package frame

import (
	"errors"
	"fmt"
	"io"
)

// Reader reads consecutive frames from a byte stream.
type Reader struct {
	r       io.Reader
	header  [HeaderSize]byte
	trailer [TrailerSize]byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame reads header, trailer and payload. A stream that ends before the
// header and trailer are complete yields ErrConnectionClosed; one that ends
// inside the payload yields a TruncatedPayload FramingError. Transport errors
// are returned unchanged.
func (r *Reader) ReadFrame() (*Frame, error) {
	if err := readExact(r.r, r.header[:]); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(r.header[:])
	if err != nil {
		return nil, err
	}

	if err := readExact(r.r, r.trailer[:]); err != nil {
		return nil, err
	}

	if err := ValidateLengths(h); err != nil {
		return nil, err
	}

	payload := make([]byte, h.PayloadLen())
	n, err := io.ReadFull(r.r, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, newError(TruncatedPayload, fmt.Sprintf("expected %d payload bytes, got %d", len(payload), n))
		}
		return nil, err
	}

	samples, err := DecodePayload(payload, len(payload))
	if err != nil {
		return nil, err
	}
	return &Frame{Header: h, Samples: samples}, nil
}

func readExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnectionClosed
	}
	return err
}

// Write encodes f and writes it to w in a single call.
func Write(w io.Writer, f *Frame) error {
	b, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
