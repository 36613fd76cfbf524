package frame

import "errors"

// Kind names a class of framing error.
type Kind string

const (
	InvalidLength    Kind = "InvalidLength"
	TruncatedPayload Kind = "TruncatedPayload"
	MalformedHeader  Kind = "MalformedHeader"
)

var (
	ErrInvalidLength    = &FramingError{Kind: InvalidLength, Msg: "invalid payload length"}
	ErrTruncatedPayload = &FramingError{Kind: TruncatedPayload, Msg: "truncated payload"}
	ErrMalformedHeader  = &FramingError{Kind: MalformedHeader, Msg: "malformed header"}

	// ErrConnectionClosed signals that the peer closed the stream between
	// frames or before a header and trailer were complete. It ends a read
	// loop normally.
	ErrConnectionClosed = errors.New("connection closed")
)

// FramingError is a protocol violation. It is fatal for the connection that
// produced it.
type FramingError struct {
	Kind Kind
	Msg  string
}

func (e *FramingError) Error() string {
	return string(e.Kind) + ": " + e.Msg
}

// Is matches any FramingError of the same kind, so errors.Is(err,
// ErrTruncatedPayload) holds for every truncated-payload error.
func (e *FramingError) Is(target error) bool {
	t, ok := target.(*FramingError)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, msg string) error {
	return &FramingError{Kind: kind, Msg: msg}
}
