package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no published page (or active menu) matches.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable marks failures of the content store or cache.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// UpstreamError wraps a storage or cache failure. It matches both
// ErrUpstreamUnavailable and the underlying cause with errors.Is.
type UpstreamError struct {
	Op  string
	Err error
}

// Unavailable wraps err as an UpstreamError for op. A nil err stays nil and
// errors already carrying the kind are returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrUpstreamUnavailable, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}
