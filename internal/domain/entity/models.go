package entity

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// TraceVersion is the format version of ExportedTrace.
const TraceVersion = 2

// TrackedObject is the configuration of one traced resource type, as stored in exported traces.
type TrackedObject struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	StripPaths []string `json:"stripPaths,omitempty"`
}

// TraceEvent groups every change recorded during the same second.
type TraceEvent struct {
	Ts          int64                        `json:"ts"`
	AppliedObjs []*unstructured.Unstructured `json:"appliedObjs"`
	DeletedObjs []*unstructured.Unstructured `json:"deletedObjs"`
}

func (e TraceEvent) Empty() bool {
	return len(e.AppliedObjs) == 0 && len(e.DeletedObjs) == 0
}

// ExportedTrace is the content of the trace for the window [Start, End).
type ExportedTrace struct {
	Version int             `json:"version"`
	Start   int64           `json:"start"`
	End     int64           `json:"end"`
	Config  []TrackedObject `json:"config"`
	Events  []TraceEvent    `json:"events"`

	// Index maps each live object key to the hash of its content
	Index map[string]uint64 `json:"index"`
}
