package watch_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	kwatch "k8s.io/apimachinery/pkg/watch"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/simkube-go/sk-tracer/pkg/watch"
	"github.com/simkube-go/sk-tracer/pkg/watch/mock"
)

// Helper

var fastBackoff = watch.BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond}

func newRESTMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper([]schema.GroupVersion{deploymentGVK.GroupVersion()})
	mapper.Add(deploymentGVK, meta.RESTScopeNamespace)

	return mapper
}

func newFakeClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(
		runtime.NewScheme(),
		map[schema.GroupVersionResource]string{deploymentGVR: "DeploymentList"},
		objects...,
	)
}

// interceptWatches makes every watch call return a new fake watcher, published on the returned channel.
func interceptWatches(client *dynamicfake.FakeDynamicClient) <-chan *kwatch.FakeWatcher {
	watchers := make(chan *kwatch.FakeWatcher, 16)

	client.PrependWatchReactor("deployments", func(action k8stesting.Action) (bool, kwatch.Interface, error) {
		w := kwatch.NewFakeWithChanSize(16, false)
		watchers <- w

		return true, w, nil
	})

	return watchers
}

func receiveEvent(stream watch.Stream) watch.Event {
	var res watch.Result

	EventuallyWithOffset(1, stream).Should(Receive(&res))
	ExpectWithOffset(1, res.Err).NotTo(HaveOccurred())

	return res.Event
}

func hasTemplate(obj *unstructured.Unstructured) bool {
	_, found, _ := unstructured.NestedFieldNoCopy(obj.Object, templatePath...)

	return found
}

// Test

var _ = Describe("Testing StreamBuilder", func() {
	var client *dynamicfake.FakeDynamicClient
	var watchers <-chan *kwatch.FakeWatcher
	var builder watch.StreamBuilder

	var ctx context.Context
	var cancel context.CancelFunc

	tracked := watch.TrackedResource{GVK: deploymentGVK, StripPaths: [][]string{templatePath}}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	JustBeforeEach(func() {
		watchers = interceptWatches(client)
		builder = watch.NewStreamBuilder(client, newRESTMapper()).WithBackoff(fastBackoff)
	})

	Context("with one deployment already in the cluster", func() {
		BeforeEach(func() {
			client = newFakeClient(newDeployment("default", "web"))
		})

		It("should start with a normalized resync of the existing objects", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventResynced))
			Expect(event.GVK).To(Equal(deploymentGVK))
			Expect(event.Objects).To(HaveLen(1))
			Expect(event.Objects[0].GetName()).To(Equal("web"))
			Expect(event.Objects[0].GroupVersionKind()).To(Equal(deploymentGVK))
			Expect(hasTemplate(event.Objects[0])).To(BeFalse())
		})

		It("should close the stream once the context is cancelled", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			receiveEvent(stream)

			cancel()

			Eventually(stream).Should(BeClosed())
		})
	})

	Context("with an empty cluster", func() {
		BeforeEach(func() {
			client = newFakeClient()
		})

		It("should map watch notifications to applied and deleted events", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventResynced))
			Expect(event.Objects).To(BeEmpty())

			var fw *kwatch.FakeWatcher
			Eventually(watchers).Should(Receive(&fw))

			By("adding an object")
			fw.Add(newDeployment("default", "web"))

			event = receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventApplied))
			Expect(event.Object.GetName()).To(Equal("web"))
			Expect(hasTemplate(event.Object)).To(BeFalse())

			By("modifying it")
			fw.Modify(newDeployment("default", "web"))

			event = receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventApplied))

			By("deleting it")
			fw.Delete(newDeployment("default", "web"))

			event = receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventDeleted))
			Expect(event.Object.GetName()).To(Equal("web"))
			Expect(event.Object.GroupVersionKind()).To(Equal(deploymentGVK))
			Expect(hasTemplate(event.Object)).To(BeFalse())
		})

		It("should surface watch errors and relist when the resource version expired", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			receiveEvent(stream)

			var fw *kwatch.FakeWatcher
			Eventually(watchers).Should(Receive(&fw))

			fw.Error(&metav1.Status{
				Status:  metav1.StatusFailure,
				Code:    http.StatusGone,
				Reason:  metav1.StatusReasonExpired,
				Message: "too old resource version",
			})

			var res watch.Result
			Eventually(stream).Should(Receive(&res))
			Expect(res.Err).To(HaveOccurred())

			streamErr := watch.ErrStream{}
			Expect(errors.As(res.Err, &streamErr)).To(BeTrue())
			Expect(streamErr.GVK).To(Equal(deploymentGVK))

			By("receiving a new resync")
			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventResynced))

			By("watching again")
			Eventually(watchers).Should(Receive(&fw))

			fw.Add(newDeployment("default", "api"))

			event = receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventApplied))
			Expect(event.Object.GetName()).To(Equal("api"))
		})

		It("should resume watching when the watch is closed by the server", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			receiveEvent(stream)

			var fw *kwatch.FakeWatcher
			Eventually(watchers).Should(Receive(&fw))

			fw.Stop()

			Eventually(watchers).Should(Receive(&fw))

			fw.Add(newDeployment("default", "web"))

			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventApplied))
		})
	})

	Context("with a failing list", func() {
		var calls atomic.Int32

		BeforeEach(func() {
			calls.Store(0)

			client = newFakeClient()
			client.PrependReactor("list", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
				if calls.Add(1) == 1 {
					return true, nil, errTransport
				}

				return false, nil, nil
			})
		})

		It("should surface the error and retry", func() {
			stream, err := builder.Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			var res watch.Result
			Eventually(stream).Should(Receive(&res))
			Expect(res.Err).To(MatchError(errTransport))

			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventResynced))
		})
	})

	Context("with an unregistered resource type", func() {
		BeforeEach(func() {
			client = newFakeClient()
		})

		It("should fail to build the stream", func() {
			_, err := builder.Build(ctx, watch.TrackedResource{GVK: jobGVK})
			Expect(err).To(MatchError(watch.ErrUnknownResourceType))
			Expect(err.Error()).To(ContainSubstring("Job"))
		})
	})

	Context("with a mocked resolver", func() {
		var ctrl *gomock.Controller
		var resolver *mock.MockResolver

		BeforeEach(func() {
			ctrl = gomock.NewController(GinkgoT())
			resolver = mock.NewMockResolver(ctrl)
			client = newFakeClient()

			resolver.EXPECT().RESTMapping(deploymentGVK.GroupKind(), "v1").Return(&meta.RESTMapping{
				Resource:         deploymentGVR,
				GroupVersionKind: deploymentGVK,
				Scope:            meta.RESTScopeNamespace,
			}, nil).Times(1)
		})

		It("should resolve the endpoint with the configured version", func() {
			stream, err := watch.NewStreamBuilder(client, resolver).WithClock(clockwork.NewRealClock()).Build(ctx, tracked)
			Expect(err).NotTo(HaveOccurred())

			event := receiveEvent(stream)
			Expect(event.Type).To(Equal(watch.EventResynced))
		})
	})
})

var _ = Describe("Testing the tracer pipeline end to end", func() {
	var ctrl *gomock.Controller
	var recorder *mock.MockRecorder

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		recorder = mock.NewMockRecorder(ctrl)
	})

	It("should record an applied deployment without its template, typed and timestamped", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := newFakeClient()
		watchers := interceptWatches(client)
		clock := clockwork.NewFakeClockAt(t0)

		tracked, err := watch.NewTrackedResource("apps/v1", "Deployment", []string{"spec.template"})
		Expect(err).NotTo(HaveOccurred())

		builder := watch.NewStreamBuilder(client, newRESTMapper()).WithBackoff(fastBackoff)

		created := make(chan *unstructured.Unstructured, 1)

		recorder.EXPECT().ReplaceAll(gomock.Any(), deploymentGVK, gomock.Len(0), t0.Unix()).Return(nil).Times(1)
		recorder.EXPECT().Create(gomock.Any(), gomock.Any(), t0.Unix()).DoAndReturn(
			func(_ context.Context, obj *unstructured.Unstructured, _ int64) error {
				created <- obj

				return nil
			},
		).Times(1)

		w, err := watch.NewWatcher(ctx, builder, recorder, []watch.TrackedResource{tracked})
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)

		go func() {
			done <- w.WithClock(clock).Start(ctx)
		}()

		var fw *kwatch.FakeWatcher
		Eventually(watchers).Should(Receive(&fw))

		source := newDeployment("default", "web")
		source.SetKind("")
		fw.Add(source)

		var obj *unstructured.Unstructured
		Eventually(created).Should(Receive(&obj))

		Expect(hasTemplate(obj)).To(BeFalse(), "template is stripped")
		Expect(obj.GroupVersionKind()).To(Equal(deploymentGVK), "type identity is the configured one")
		Expect(obj.GetName()).To(Equal("web"))

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})
