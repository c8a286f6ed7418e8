package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Watcher merges the streams of every tracked resource type and dispatches
// their events, one at a time, to a Recorder.
type Watcher struct {
	streams  []Stream
	recorder Recorder
	clock    clockwork.Clock

	// stop ends the streams owned by this watcher
	stop context.CancelFunc

	metrics *watcherMetrics
	logger  *logr.Logger

	// errLogs bounds how many stream errors are logged; all of them are counted
	errLogs *rate.Limiter
}

type watcherMetrics struct {
	events       *prometheus.CounterVec
	streamErrors *prometheus.CounterVec
}

// NewWatcher builds one stream per tracked resource type, concurrently.
// If any of them cannot be built, no stream is kept and the error is returned.
func NewWatcher(ctx context.Context, builder Builder, recorder Recorder, tracked []TrackedResource) (*Watcher, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	streams := make([]Stream, len(tracked))

	group := errgroup.Group{}

	for i, t := range tracked {
		index, resource := i, t

		group.Go(func() error {
			stream, err := builder.Build(streamCtx, resource)
			if err != nil {
				return fmt.Errorf("failed to build stream for %s: %w", resource.GVK.String(), err)
			}

			streams[index] = stream

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		cancel()

		return nil, err
	}

	return &Watcher{
		streams:  streams,
		recorder: recorder,
		clock:    clockwork.NewRealClock(),
		stop:     cancel,
		errLogs:  rate.NewLimiter(rate.Inf, 0),
	}, nil
}

// NewWatcherFromParts creates a watcher over a single, already built stream.
func NewWatcherFromParts(stream Stream, recorder Recorder, clock clockwork.Clock) *Watcher {
	return &Watcher{
		streams:  []Stream{stream},
		recorder: recorder,
		clock:    clock,
		stop:     func() {},
		errLogs:  rate.NewLimiter(rate.Inf, 0),
	}
}

// WithClock replaces the clock used to timestamp dispatched events.
func (w *Watcher) WithClock(clock clockwork.Clock) *Watcher {
	w.clock = clock

	return w
}

func (w *Watcher) WithLogger(logger logr.Logger) *Watcher {
	w.logger = &logger

	return w
}

// WithErrorLogRate limits the rate at which stream errors are logged.
func (w *Watcher) WithErrorLogRate(limit rate.Limit, burst int) *Watcher {
	w.errLogs = rate.NewLimiter(limit, burst)

	return w
}

// WithMetrics registers the event and stream error counters on registry.
func (w *Watcher) WithMetrics(registry prometheus.Registerer, config MetricsConfig) (*Watcher, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "watch_events_total",
		Help:      "Events dispatched to the recorder by type and kind.",
	}, []string{"type", "kind"})

	err := registry.Register(events)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	streamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "watch_stream_errors_total",
		Help:      "Errors received on watch streams by kind.",
	}, []string{"kind"})

	err = registry.Register(streamErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	w.metrics = &watcherMetrics{
		events:       events,
		streamErrors: streamErrors,
	}

	return w, nil
}

// Start runs the dispatch loop. It returns nil once every stream has ended,
// the context error if ctx is done first, or the first recorder error.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.stop()

	ctx, cancel := context.WithCancel(ctx)

	merged, forwarders := w.merge(ctx)

	// forwarders are gone when Start returns, even if a stream is never closed
	defer forwarders.Wait()
	defer cancel()

	w.logInfo(0, "Start watching", "streams", len(w.streams))

	for {
		select {
		case <-ctx.Done():
			w.logInfo(0, "Context done, stop watching")

			return ctx.Err()
		case res, ok := <-merged:
			if !ok {
				// forwarders also stop on cancellation
				err := ctx.Err()
				if err != nil {
					w.logInfo(0, "Context done, stop watching")

					return err
				}

				w.logInfo(0, "All streams ended")

				return nil
			}

			if res.Err != nil {
				w.handleStreamError(res.Err)

				continue
			}

			err := w.handleEvent(ctx, res.Event)
			if err != nil {
				w.logError(err, "Failed to record event", "type", res.Event.Type, "gvk", res.Event.GVK.String())

				return err
			}
		}
	}
}

// merge forwards every stream into a single channel, closed once all streams are.
// Items of a given stream keep their relative order. Forwarders stop on ctx done.
func (w *Watcher) merge(ctx context.Context) (<-chan Result, *sync.WaitGroup) {
	out := make(chan Result)

	wg := &sync.WaitGroup{}
	wg.Add(len(w.streams))

	for _, s := range w.streams {
		go func(stream Stream) {
			defer wg.Done()

			for {
				var res Result

				select {
				case <-ctx.Done():
					return
				case item, ok := <-stream:
					if !ok {
						return
					}

					res = item
				}

				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}(s)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, wg
}

func (w *Watcher) handleEvent(ctx context.Context, event Event) error {
	ts := w.clock.Now().Unix()

	// a dispatch always runs to completion
	ctx = context.WithoutCancel(ctx)

	var err error

	switch event.Type {
	case EventApplied:
		err = w.recorder.Create(ctx, event.Object, ts)
	case EventDeleted:
		err = w.recorder.Delete(ctx, event.Object, ts)
	case EventResynced:
		err = w.recorder.ReplaceAll(ctx, event.GVK, event.Objects, ts)
	default:
		w.logInfo(0, "Ignoring event with unknown type", "type", event.Type)

		return nil
	}

	if err != nil {
		return newErrRecorder(err)
	}

	w.logInfo(3, "Event recorded", "type", event.Type, "gvk", event.GVK.String(), "ts", ts)

	if w.metrics != nil {
		w.metrics.events.WithLabelValues(string(event.Type), event.GVK.Kind).Inc()
	}

	return nil
}

func (w *Watcher) handleStreamError(err error) {
	kind := "unknown"

	streamErr := ErrStream{}
	if errors.As(err, &streamErr) {
		kind = streamErr.GVK.Kind
	}

	if w.errLogs.Allow() {
		w.logError(err, "Watcher received error on stream", "kind", kind)
	}

	if w.metrics != nil {
		w.metrics.streamErrors.WithLabelValues(kind).Inc()
	}
}

func (w *Watcher) logInfo(level int, msg string, keysAndValues ...any) {
	if w.logger == nil {
		return
	}

	w.logger.V(level).Info(msg, keysAndValues...)
}

func (w *Watcher) logError(err error, msg string, keysAndValues ...any) {
	if w.logger == nil {
		return
	}

	w.logger.Error(err, msg, keysAndValues...)
}
