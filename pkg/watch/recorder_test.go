package watch_test

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"go.uber.org/mock/gomock"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/simkube-go/sk-tracer/pkg/watch"
	"github.com/simkube-go/sk-tracer/pkg/watch/mock"
)

// Helper

var panicReason = "index is corrupted"

type PanicRecorder struct{}

func (p PanicRecorder) Create(context.Context, *unstructured.Unstructured, int64) error {
	panic(panicReason)
}

func (p PanicRecorder) Delete(context.Context, *unstructured.Unstructured, int64) error {
	panic(panicReason)
}

func (p PanicRecorder) ReplaceAll(context.Context, schema.GroupVersionKind, []*unstructured.Unstructured, int64) error {
	panic(panicReason)
}

type SlowRecorder struct {
	Sleep time.Duration
	Err   error

	clock clockwork.FakeClock
}

func NewSlowRecorder(clock clockwork.FakeClock) *SlowRecorder {
	return &SlowRecorder{clock: clock}
}

func (s *SlowRecorder) Create(context.Context, *unstructured.Unstructured, int64) error {
	s.clock.Advance(s.Sleep)

	return s.Err
}

func (s *SlowRecorder) Delete(context.Context, *unstructured.Unstructured, int64) error {
	s.clock.Advance(s.Sleep)

	return s.Err
}

func (s *SlowRecorder) ReplaceAll(context.Context, schema.GroupVersionKind, []*unstructured.Unstructured, int64) error {
	s.clock.Advance(s.Sleep)

	return s.Err
}

// Test Panic Recorder

var _ = Describe("Testing panic handler recorder", func() {
	var ctrl *gomock.Controller

	var panicHandler watch.Recorder
	var mockRecorder *mock.MockRecorder

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
	})

	When("the inner recorder panic", func() {
		BeforeEach(func() {
			panicHandler = watch.NewPanicHandlerRecorder(PanicRecorder{})
		})

		It("should return an error on every operation and not panic", func(ctx SpecContext) {
			obj := newDeployment("default", "web")

			err := panicHandler.Create(ctx, obj, t0.Unix())
			Expect(err).To(HaveOccurred(), "non nil err")
			Expect(err.Error()).To(ContainSubstring(panicReason), "contain the panic reason")

			err = panicHandler.Delete(ctx, obj, t0.Unix())
			Expect(err).To(HaveOccurred(), "non nil err")
			Expect(err.Error()).To(ContainSubstring(panicReason), "contain the panic reason")

			err = panicHandler.ReplaceAll(ctx, deploymentGVK, nil, t0.Unix())
			Expect(err).To(HaveOccurred(), "non nil err")
			Expect(err.Error()).To(ContainSubstring(panicReason), "contain the panic reason")
		})
	})

	When("the inner recorder doesn't panic", func() {
		BeforeEach(func() {
			mockRecorder = mock.NewMockRecorder(ctrl)
			panicHandler = watch.NewPanicHandlerRecorder(mockRecorder)
		})

		Context("and return an error", func() {
			BeforeEach(func() {
				mockRecorder.EXPECT().Create(gomock.Any(), gomock.Any(), t0.Unix()).Return(errStorage).Times(1)
			})

			It("should return the error", func(ctx SpecContext) {
				err := panicHandler.Create(ctx, newDeployment("default", "web"), t0.Unix())
				Expect(err).To(HaveOccurred(), "non nil error")
				Expect(err).Should(MatchError(errStorage), "error is the original error")
			})
		})

		Context("and return nil", func() {
			BeforeEach(func() {
				mockRecorder.EXPECT().ReplaceAll(gomock.Any(), deploymentGVK, gomock.Len(1), t0.Unix()).Return(nil).Times(1)
			})

			It("should return nil", func(ctx SpecContext) {
				err := panicHandler.ReplaceAll(ctx, deploymentGVK, []*unstructured.Unstructured{newDeployment("default", "web")}, t0.Unix())
				Expect(err).NotTo(HaveOccurred(), "nil err")
			})
		})
	})
})

// Test Metric Duration

var _ = Describe("Testing duration metrics recorder", func() {
	var registry *prometheus.Registry
	var metrics watch.Recorder
	var recorder *SlowRecorder

	BeforeEach(func() {
		registry = prometheus.NewPedanticRegistry()
	})

	Context("using a recorder that takes a custom time to record", func() {
		var err error

		obj := newDeployment("default", "web")

		BeforeEach(func() {
			fakeClock := clockwork.NewFakeClock()

			recorder = NewSlowRecorder(fakeClock)
			metrics, err = watch.NewDurationMetricsRecorder(recorder, registry, fakeClock,
				watch.MetricsConfig{
					Namespace: "test",
					Buckets:   []float64{20, 200, 2000},
				},
			)

			Expect(err).NotTo(HaveOccurred())
		})

		When("several creates succeed with different duration", func() {
			BeforeEach(func() {
				recorder.Sleep = 5 * time.Millisecond

				for i := 0; i < 3; i++ {
					err = metrics.Create(context.TODO(), obj, t0.Unix())
					Expect(err).NotTo(HaveOccurred())
				}

				recorder.Sleep = 50 * time.Millisecond

				for i := 0; i < 2; i++ {
					err = metrics.Create(context.TODO(), obj, t0.Unix())
					Expect(err).NotTo(HaveOccurred())
				}

				recorder.Sleep = 500 * time.Millisecond

				err = metrics.Create(context.TODO(), obj, t0.Unix())
				Expect(err).NotTo(HaveOccurred())
			})

			It("should returns the right number in the metrics", func() {
				families, err := registry.Gather()
				Expect(err).NotTo(HaveOccurred())
				Expect(families).To(HaveLen(1))
				Expect(families[0].GetName()).To(Equal("test_recording_duration_milliseconds"))
				Expect(families[0].Metric).To(HaveLen(1))

				metric := families[0].Metric[0]

				By("checking the labels")
				Expect(metric.Label).To(HaveLen(2))
				Expect(filterMetricByLabel(families[0].Metric, "failed", "false")).NotTo(BeNil())
				Expect(filterMetricByLabel(families[0].Metric, "operation", "create")).NotTo(BeNil())

				By("checking if it's a histogram")
				Expect(metric.Histogram).NotTo(BeNil())

				By("checking the total number of sample in the metric")
				Expect(metric.Histogram.SampleCount).NotTo(BeNil())
				Expect(*metric.Histogram.SampleCount).To(BeEquivalentTo(6))

				By("checking the different buckets")
				Expect(metric.Histogram.Bucket).To(ConsistOf(
					&promdto.Bucket{UpperBound: pointer[float64](20), CumulativeCount: pointer[uint64](3)},
					&promdto.Bucket{UpperBound: pointer[float64](200), CumulativeCount: pointer[uint64](5)},
					&promdto.Bucket{UpperBound: pointer[float64](2000), CumulativeCount: pointer[uint64](6)},
				))
			})
		})

		When("operations of every kind are recorded and one fails", func() {
			BeforeEach(func() {
				recorder.Sleep = 10 * time.Millisecond

				err = metrics.Create(context.TODO(), obj, t0.Unix())
				Expect(err).NotTo(HaveOccurred())

				err = metrics.ReplaceAll(context.TODO(), deploymentGVK, nil, t0.Unix())
				Expect(err).NotTo(HaveOccurred())

				recorder.Sleep = 2500 * time.Millisecond
				recorder.Err = errStorage

				err = metrics.Delete(context.TODO(), obj, t0.Unix())
				Expect(err).To(MatchError(errStorage))
			})

			It("should label each sample with its operation and outcome", func() {
				families, err := registry.Gather()
				Expect(err).NotTo(HaveOccurred())
				Expect(families).To(HaveLen(1))
				Expect(families[0].Metric).To(HaveLen(3))

				By("checking the failed delete")
				failureMetric := filterMetricByLabel(families[0].Metric, "failed", "true")
				Expect(failureMetric).NotTo(BeNil())
				Expect(filterMetricByLabel([]*promdto.Metric{failureMetric}, "operation", "delete")).NotTo(BeNil())
				Expect(*failureMetric.Histogram.SampleCount).To(BeEquivalentTo(1))
				Expect(failureMetric.Histogram.Bucket).To(ConsistOf(
					&promdto.Bucket{UpperBound: pointer[float64](20), CumulativeCount: pointer[uint64](0)},
					&promdto.Bucket{UpperBound: pointer[float64](200), CumulativeCount: pointer[uint64](0)},
					&promdto.Bucket{UpperBound: pointer[float64](2000), CumulativeCount: pointer[uint64](0)},
				))

				By("checking the replace")
				replaceMetric := filterMetricByLabel(families[0].Metric, "operation", "replace_all")
				Expect(replaceMetric).NotTo(BeNil())
				Expect(*replaceMetric.Histogram.SampleCount).To(BeEquivalentTo(1))
			})
		})
	})

	When("the histogram is already registered", func() {
		It("should fail", func() {
			_, err := watch.NewDurationMetricsRecorder(&SlowRecorder{}, registry, clockwork.NewFakeClock(), watch.MetricsConfig{})
			Expect(err).NotTo(HaveOccurred())

			_, err = watch.NewDurationMetricsRecorder(&SlowRecorder{}, registry, clockwork.NewFakeClock(), watch.MetricsConfig{})
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &prometheus.AlreadyRegisteredError{})).To(BeTrue())
		})
	})
})
