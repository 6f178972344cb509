package namespace

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Validation kinds are returned before any store call is made.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrDestinationExists = fmt.Errorf("%w: destination already exists", ErrInvalidOperation)
	ErrStoreUnavailable  = errors.New("object store unavailable")
)

// Kind names used in error responses
const (
	KindInvalidArgument   = "InvalidArgument"
	KindInvalidOperation  = "InvalidOperation"
	KindDestinationExists = "DestinationExists"
	KindStoreUnavailable  = "StoreUnavailable"
	KindInternal          = "InternalError"
)

// CollisionError lists destination keys that already exist when the
// overwrite policy rejects collisions
type CollisionError struct {
	Source      string
	Destination string
	Keys        []string
}

func (e *CollisionError) Error() string {
	const shown = 5
	keys := e.Keys
	more := ""
	if len(keys) > shown {
		more = fmt.Sprintf(" and %d more", len(keys)-shown)
		keys = keys[:shown]
	}
	return fmt.Sprintf("cannot move %q to %q: %d destination keys already exist (%s%s)",
		e.Source, e.Destination, len(e.Keys), strings.Join(keys, ", "), more)
}

func (e *CollisionError) Unwrap() error {
	return ErrDestinationExists
}

// KindOf classifies err for API responses
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrDestinationExists):
		return KindDestinationExists
	case errors.Is(err, ErrInvalidOperation):
		return KindInvalidOperation
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func invalidOperation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
