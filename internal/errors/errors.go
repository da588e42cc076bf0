package errors

import (
	"errors"
	"fmt"
)

// Common error values shared by the internal packages
var (
	// Stream errors
	ErrStreamClosed = errors.New("stream closed")

	// HTTP errors
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// Decoding errors
	ErrMissingField = errors.New("missing required field")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// WithKind wraps err under the sentinel kind so both match with errors.Is.
// A nil err yields an error carrying only the kind.
func WithKind(kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return fmt.Errorf(format+": %w", append(args, kind)...)
	}
	return fmt.Errorf(format+": %w: %w", append(args, kind, err)...)
}
