package common

import (
	"context"
	"errors"
	"fmt"
)

// ErrRetryableError marks a failure worth retrying, usually a transient storage or network error.
var ErrRetryableError = errors.New("retryable error")

func NewRetryableError(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryableError, err)
}

// NewError adds some context to err, marking it as retryable if asked.
func NewError(err error, retryable bool, reason string, args ...interface{}) error {
	if retryable {
		err = NewRetryableError(err)
	}

	return fmt.Errorf("%s: %w", fmt.Sprintf(reason, args...), err)
}

// CloseFunc releases a resource created by a factory.
type CloseFunc func(context.Context) error

// NoopClose is the CloseFunc of resources with nothing to release.
func NoopClose(context.Context) error {
	return nil
}
