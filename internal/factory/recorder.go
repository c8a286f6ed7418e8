package factory

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simkube-go/sk-tracer/pkg/watch"
)

/*
 * DecorateRecorder decorates the recorder as follow:
 *
 * panic --> duration --> main (tracer + journal)
 */
func DecorateRecorder(mainRecorder watch.Recorder, registry prometheus.Registerer, clock clockwork.Clock) (watch.Recorder, error) {
	ret := mainRecorder

	ret, err := watch.NewDurationMetricsRecorder(ret, registry, clock, watch.MetricsConfig{Namespace: MetricsNamespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics recorder: %w", err)
	}

	ret = watch.NewPanicHandlerRecorder(ret)

	return ret, nil
}
