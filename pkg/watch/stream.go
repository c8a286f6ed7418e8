package watch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	kwatch "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
)

type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
}

var defaultBackoff = BackoffConfig{
	Initial: 800 * time.Millisecond,
	Max:     30 * time.Second,
}

// StreamBuilder opens cluster wide list+watch streams through a dynamic client.
type StreamBuilder struct {
	client   dynamic.Interface
	resolver Resolver
	clock    clockwork.Clock
	backoff  BackoffConfig

	logger *logr.Logger
}

func NewStreamBuilder(client dynamic.Interface, resolver Resolver) StreamBuilder {
	return StreamBuilder{
		client:   client,
		resolver: resolver,
		clock:    clockwork.NewRealClock(),
		backoff:  defaultBackoff,
	}
}

func (b StreamBuilder) WithLogger(logger logr.Logger) StreamBuilder {
	b.logger = &logger

	return b
}

func (b StreamBuilder) WithClock(clock clockwork.Clock) StreamBuilder {
	b.clock = clock

	return b
}

func (b StreamBuilder) WithBackoff(config BackoffConfig) StreamBuilder {
	if config.Initial > 0 {
		b.backoff.Initial = config.Initial
	}

	if config.Max > 0 {
		b.backoff.Max = config.Max
	}

	return b
}

// Build resolves the tracked type and starts streaming its events.
// Only resolution failures are returned; everything happening afterwards is
// reported as error items on the stream. The stream is closed once ctx is done.
func (b StreamBuilder) Build(ctx context.Context, tracked TrackedResource) (Stream, error) {
	mapping, err := b.resolver.RESTMapping(tracked.GVK.GroupKind(), tracked.GVK.Version)
	if err != nil {
		return nil, newErrUnknownResourceType(tracked.GVK, err)
	}

	out := make(chan Result)

	stream := resourceStream{
		resource: b.client.Resource(mapping.Resource),
		tracked:  tracked,
		clock:    b.clock,
		backoff:  b.backoff,
		logger:   b.logger,
		out:      out,
	}

	b.logInfo(1, "Watching resource", "gvk", tracked.GVK.String(), "resource", mapping.Resource.String())

	go stream.run(ctx)

	return out, nil
}

func (b StreamBuilder) logInfo(level int, msg string, keysAndValues ...any) {
	if b.logger == nil {
		return
	}

	b.logger.V(level).Info(msg, keysAndValues...)
}

type resourceStream struct {
	resource dynamic.ResourceInterface
	tracked  TrackedResource
	clock    clockwork.Clock
	backoff  BackoffConfig

	logger *logr.Logger

	out chan<- Result
}

func (s resourceStream) run(ctx context.Context) {
	defer close(s.out)

	resourceVersion := ""
	mustList := true
	backoff := s.newWatchBackoff()

	for ctx.Err() == nil {
		if mustList {
			rv, err := s.list(ctx)
			if err != nil { // list is retried until the context is done
				return
			}

			resourceVersion = rv
			mustList = false
		}

		rv, relist, received := s.watch(ctx, resourceVersion)
		resourceVersion = rv
		mustList = relist

		if received {
			backoff = s.newWatchBackoff()
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(backoff.Step()):
		}
	}
}

// list fetches the complete set of objects and emits it as a resync.
func (s resourceStream) list(ctx context.Context) (string, error) {
	var list *unstructured.UnstructuredList

	err := retry.Do(
		func() error {
			var err error

			list, err = s.resource.List(ctx, metav1.ListOptions{})

			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(s.backoff.Initial),
		retry.MaxDelay(s.backoff.Max),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.WithTimer(s.clock),
		retry.RetryIf(func(error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			s.emitError(ctx, fmt.Errorf("failed to list (attempt %d): %w", n+1, err))
		}),
	)
	if err != nil {
		return "", err
	}

	objs := make([]*unstructured.Unstructured, 0, len(list.Items))
	for i := range list.Items {
		objs = append(objs, Normalize(&list.Items[i], s.tracked.StripPaths, s.tracked.GVK))
	}

	if !s.emit(ctx, Result{Event: NewResyncedEvent(s.tracked.GVK, objs)}) {
		return "", ctx.Err()
	}

	return list.GetResourceVersion(), nil
}

// watch consumes one watch connection until it ends.
// It returns the last seen resource version, whether a relist is required and
// whether at least one notification was received.
func (s resourceStream) watch(ctx context.Context, resourceVersion string) (string, bool, bool) {
	w, err := s.resource.Watch(ctx, metav1.ListOptions{
		ResourceVersion:     resourceVersion,
		AllowWatchBookmarks: true,
	})
	if err != nil {
		s.emitError(ctx, fmt.Errorf("failed to watch: %w", err))

		return resourceVersion, true, false
	}
	defer w.Stop()

	received := false

	for {
		select {
		case <-ctx.Done():
			return resourceVersion, false, received
		case notification, ok := <-w.ResultChan():
			if !ok {
				s.logInfo(2, "Watch closed, resuming", "gvk", s.tracked.GVK.String(), "resourceVersion", resourceVersion)

				return resourceVersion, false, received
			}

			received = true

			switch notification.Type {
			case kwatch.Added, kwatch.Modified, kwatch.Deleted:
				obj, ok := notification.Object.(*unstructured.Unstructured)
				if !ok {
					s.emitError(ctx, fmt.Errorf("unexpected object type %T", notification.Object))

					continue
				}

				if rv := obj.GetResourceVersion(); rv != "" {
					resourceVersion = rv
				}

				normalized := Normalize(obj, s.tracked.StripPaths, s.tracked.GVK)

				event := NewAppliedEvent(s.tracked.GVK, normalized)
				if notification.Type == kwatch.Deleted {
					event = NewDeletedEvent(s.tracked.GVK, normalized)
				}

				if !s.emit(ctx, Result{Event: event}) {
					return resourceVersion, false, received
				}
			case kwatch.Bookmark:
				accessor, err := meta.Accessor(notification.Object)
				if err == nil && accessor.GetResourceVersion() != "" {
					resourceVersion = accessor.GetResourceVersion()
				}
			case kwatch.Error:
				statusErr := apierrors.FromObject(notification.Object)

				s.emitError(ctx, fmt.Errorf("watch error: %w", statusErr))

				if apierrors.IsResourceExpired(statusErr) || apierrors.IsGone(statusErr) {
					return resourceVersion, true, received
				}
			}
		}
	}
}

func (s resourceStream) newWatchBackoff() *wait.Backoff {
	return &wait.Backoff{
		Duration: s.backoff.Initial,
		Factor:   2,
		Jitter:   0.1,
		Steps:    math.MaxInt32,
		Cap:      s.backoff.Max,
	}
}

func (s resourceStream) emit(ctx context.Context, res Result) bool {
	select {
	case <-ctx.Done():
		return false
	case s.out <- res:
		return true
	}
}

func (s resourceStream) emitError(ctx context.Context, err error) bool {
	return s.emit(ctx, Result{Err: NewErrStream(err, s.tracked.GVK)})
}

func (s resourceStream) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}
