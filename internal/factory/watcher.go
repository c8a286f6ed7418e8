package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
	"k8s.io/client-go/dynamic"

	"github.com/simkube-go/sk-tracer/internal/config"
	"github.com/simkube-go/sk-tracer/internal/log"
	"github.com/simkube-go/sk-tracer/pkg/watch"
)

const (
	// at most errLogBurst stream errors are logged per errLogInterval, all of them are counted
	errLogInterval = time.Second
	errLogBurst    = 10
)

// CreateWatcher opens a stream per tracked resource type. Streams, backoffs and
// dispatched events all follow clock.
func CreateWatcher(ctx context.Context, conf config.Tracer, client dynamic.Interface, resolver watch.Resolver, recorder watch.Recorder, registry prometheus.Registerer, clock clockwork.Clock) (*watch.Watcher, error) {
	logger := log.Logger()

	tracked, err := conf.TrackedResources()
	if err != nil {
		return nil, fmt.Errorf("invalid tracked objects: %w", err)
	}

	builder := watch.NewStreamBuilder(client, resolver).
		WithClock(clock).
		WithLogger(logger.WithName("stream")).
		WithBackoff(watch.BackoffConfig{
			Initial: conf.WatchBackoff.Initial,
			Max:     conf.WatchBackoff.Max,
		})

	ret, err := watch.NewWatcher(ctx, builder, recorder, tracked)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return ret.
		WithClock(clock).
		WithLogger(logger.WithName("watcher")).
		WithErrorLogRate(rate.Every(errLogInterval), errLogBurst).
		WithMetrics(registry, watch.MetricsConfig{Namespace: MetricsNamespace})
}
