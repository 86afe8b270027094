package infra

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout     = errors.New("timeout error")
	ErrUnavailable = errors.New("sink unavailable")
)

func NewTimeoutError(details string) error {
	return fmt.Errorf("%w: %s", ErrTimeout, details)
}

func NewUnavailableError(details string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, details, cause)
}

// IsRetriable returns true if the error is a timeout or an unreachable sink,
// so retry makes sense.
func IsRetriable(err error) bool {
	return err != nil && (errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable))
}
