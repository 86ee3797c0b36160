package speedrun

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the leaderboard service answers 404 or an
// empty listing where one record was expected.
var ErrNotFound = errors.New("speedrun: not found")

// ValidationError reports an upstream payload that does not match the
// expected schema. It is fatal for the fetch that produced it only.
type ValidationError struct {
	Schema string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("speedrun: invalid %s payload: %v", e.Schema, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransientError reports a network, rate limit or server side failure that
// may succeed when retried.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speedrun: transient upstream failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("speedrun: transient upstream failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
