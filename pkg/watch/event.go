package watch

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

type EventType string

const (
	// EventApplied is emitted when an object is added or modified.
	EventApplied EventType = "applied"
	// EventDeleted is emitted when an object is removed.
	EventDeleted EventType = "deleted"
	// EventResynced carries the complete set of objects of one resource type.
	// Consumers must replace their state for that type, never merge into it.
	EventResynced EventType = "resynced"
)

// Event is one unit of observation from a stream.
// Object is set for applied and deleted events, Objects for resynced events.
type Event struct {
	Type    EventType
	GVK     schema.GroupVersionKind
	Object  *unstructured.Unstructured
	Objects []*unstructured.Unstructured
}

func NewAppliedEvent(gvk schema.GroupVersionKind, obj *unstructured.Unstructured) Event {
	return Event{Type: EventApplied, GVK: gvk, Object: obj}
}

func NewDeletedEvent(gvk schema.GroupVersionKind, obj *unstructured.Unstructured) Event {
	return Event{Type: EventDeleted, GVK: gvk, Object: obj}
}

func NewResyncedEvent(gvk schema.GroupVersionKind, objs []*unstructured.Unstructured) Event {
	return Event{Type: EventResynced, GVK: gvk, Objects: objs}
}

// Result is a stream item: either an event or an error.
type Result struct {
	Event Event
	Err   error
}

// Stream is a feed of results for a single resource type.
// It is closed by its producer when the stream ends.
type Stream <-chan Result

// TrackedResource describes one resource type to watch and how to normalize its objects.
type TrackedResource struct {
	GVK        schema.GroupVersionKind
	StripPaths [][]string
}

// PodResource is the tracked resource for core/v1 pods, without any strip path.
func PodResource() TrackedResource {
	return TrackedResource{GVK: corev1.SchemeGroupVersion.WithKind("Pod")}
}
