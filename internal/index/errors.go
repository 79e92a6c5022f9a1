package index

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a position does not address an entry.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("malformed index data")
	// ErrEncode is matched by every *EncodeError.
	ErrEncode = errors.New("embedding failed")
)

// FormatError describes why a serialized index was rejected.
type FormatError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("malformed index data at byte %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// EncodeError wraps a failure of the embedding provider for one text.
type EncodeError struct {
	Text string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("embed %q: %v", e.Text, e.Err)
}

func (e *EncodeError) Is(target error) bool { return target == ErrEncode }

func (e *EncodeError) Unwrap() error { return e.Err }

func outOfRange(i, n int) error {
	return fmt.Errorf("%w: position %d, %d entries", ErrIndexOutOfRange, i, n)
}

var errNoEmbedder = errors.New("index has no embedder")
