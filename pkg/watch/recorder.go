package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	operationCreate     = "create"
	operationDelete     = "delete"
	operationReplaceAll = "replace_all"
)

type MetricsConfig struct {
	Namespace string
	Buckets   []float64
}

// Panic handler Recorder

type panicHandler struct {
	recorder Recorder
}

// NewPanicHandlerRecorder turns a panic of the inner recorder into an error.
func NewPanicHandlerRecorder(r Recorder) Recorder {
	return panicHandler{
		recorder: r,
	}
}

func (p panicHandler) Create(ctx context.Context, obj *unstructured.Unstructured, ts int64) (err error) {
	defer recoverAsError(&err)

	return p.recorder.Create(ctx, obj, ts)
}

func (p panicHandler) Delete(ctx context.Context, obj *unstructured.Unstructured, ts int64) (err error) {
	defer recoverAsError(&err)

	return p.recorder.Delete(ctx, obj, ts)
}

func (p panicHandler) ReplaceAll(ctx context.Context, gvk schema.GroupVersionKind, objs []*unstructured.Unstructured, ts int64) (err error) {
	defer recoverAsError(&err)

	return p.recorder.ReplaceAll(ctx, gvk, objs, ts)
}

func recoverAsError(err *error) {
	r := recover()
	if r != nil {
		*err = fmt.Errorf("unexpected error: %v", r)
	}
}

// Duration Metric Recorder

type durationDecorator struct {
	recorder  Recorder
	histogram *prometheus.HistogramVec
	clock     clockwork.Clock
}

// NewDurationMetricsRecorder observes how long each recorder call takes, in milliseconds.
func NewDurationMetricsRecorder(r Recorder, registry prometheus.Registerer, clock clockwork.Clock, config MetricsConfig) (Recorder, error) {
	ret := durationDecorator{
		recorder: r,
		clock:    clock,
	}

	buckets := config.Buckets
	if len(buckets) == 0 {
		buckets = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}
	}

	opts := prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Name:      "recording_duration_milliseconds",
		Help:      "Time taken to record an event.",
		Buckets:   buckets,
	}

	histogram := prometheus.NewHistogramVec(opts, []string{"operation", "failed"})

	err := registry.Register(histogram)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret.histogram = histogram

	return ret, nil
}

func (p durationDecorator) Create(ctx context.Context, obj *unstructured.Unstructured, ts int64) error {
	start := p.clock.Now()

	err := p.recorder.Create(ctx, obj, ts)

	p.observe(operationCreate, start, err)

	return err
}

func (p durationDecorator) Delete(ctx context.Context, obj *unstructured.Unstructured, ts int64) error {
	start := p.clock.Now()

	err := p.recorder.Delete(ctx, obj, ts)

	p.observe(operationDelete, start, err)

	return err
}

func (p durationDecorator) ReplaceAll(ctx context.Context, gvk schema.GroupVersionKind, objs []*unstructured.Unstructured, ts int64) error {
	start := p.clock.Now()

	err := p.recorder.ReplaceAll(ctx, gvk, objs, ts)

	p.observe(operationReplaceAll, start, err)

	return err
}

func (p durationDecorator) observe(operation string, start time.Time, err error) {
	duration := p.clock.Since(start)
	durationMilli := float64(duration/time.Millisecond) + float64(duration%time.Millisecond)/float64(time.Millisecond)

	p.histogram.WithLabelValues(operation, fmt.Sprintf("%v", err != nil)).Observe(durationMilli)
}
