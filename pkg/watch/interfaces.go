package watch

import (
	"context"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_watch.go

// Recorder receives the timestamped lifecycle events dispatched by a Watcher.
// Calls are never concurrent from a single Watcher.
type Recorder interface {
	Create(ctx context.Context, obj *unstructured.Unstructured, ts int64) error
	Delete(ctx context.Context, obj *unstructured.Unstructured, ts int64) error
	ReplaceAll(ctx context.Context, gvk schema.GroupVersionKind, objs []*unstructured.Unstructured, ts int64) error
}

// Builder opens a normalized stream for one tracked resource type.
type Builder interface {
	Build(ctx context.Context, tracked TrackedResource) (Stream, error)
}

// Resolver maps a resource type to its API endpoint. meta.RESTMapper implements it.
type Resolver interface {
	RESTMapping(gk schema.GroupKind, versions ...string) (*meta.RESTMapping, error)
}
