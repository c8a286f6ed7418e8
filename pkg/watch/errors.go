package watch

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// ErrUnknownResourceType is returned when a tracked type cannot be resolved to an API endpoint.
	ErrUnknownResourceType = errors.New("unknown resource type")

	// ErrRecorder wraps any error returned by the recorder while dispatching an event.
	ErrRecorder = errors.New("recorder failure")

	ErrInvalidFieldPath = errors.New("invalid field path")
)

// ErrStream is a transport level failure surfaced as a stream item.
// It never terminates the stream it was emitted on.
type ErrStream struct {
	error
	GVK schema.GroupVersionKind
}

func NewErrStream(err error, gvk schema.GroupVersionKind) ErrStream {
	return ErrStream{
		error: err,
		GVK:   gvk,
	}
}

func (e ErrStream) Unwrap() error {
	return e.error
}

func newErrUnknownResourceType(gvk schema.GroupVersionKind, err error) error {
	return fmt.Errorf("%w %s: %w", ErrUnknownResourceType, gvk.String(), err)
}

func newErrRecorder(err error) error {
	return fmt.Errorf("%w: %w", ErrRecorder, err)
}
