package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/simkube-go/sk-tracer/internal/domain/entity"
	"github.com/simkube-go/sk-tracer/internal/domain/repo"
)

var ErrInvalidWindow = errors.New("invalid export window")

// Tracer keeps the history of every traced object in memory.
// It is safe for concurrent use.
type Tracer struct {
	mu sync.Mutex

	events []entity.TraceEvent
	index  map[string]indexEntry

	config    []entity.TrackedObject
	retention time.Duration
	clock     clockwork.Clock
	journal   repo.JournalWriter

	logger *logr.Logger
}

type indexEntry struct {
	hash uint64
	gvk  schema.GroupVersionKind
	obj  *unstructured.Unstructured
}

func NewTracer(config []entity.TrackedObject, clock clockwork.Clock) *Tracer {
	return &Tracer{
		index:  map[string]indexEntry{},
		config: config,
		clock:  clock,
	}
}

// WithRetention drops events older than retention on each write. 0 keeps everything.
func (t *Tracer) WithRetention(retention time.Duration) *Tracer {
	t.retention = retention

	return t
}

// WithJournal forwards every recorded change to journal.
func (t *Tracer) WithJournal(journal repo.JournalWriter) *Tracer {
	t.journal = journal

	return t
}

func (t *Tracer) WithLogger(logger logr.Logger) *Tracer {
	t.logger = &logger

	return t
}

func (t *Tracer) Create(ctx context.Context, obj *unstructured.Unstructured, ts int64) error {
	hash, err := ContentHash(obj)
	if err != nil {
		return err
	}

	delta := t.createLocked(obj, hash, ts)

	return t.writeJournal(ctx, delta)
}

func (t *Tracer) createLocked(obj *unstructured.Unstructured, hash uint64, ts int64) entity.TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := entity.TraceEvent{Ts: ts}

	if t.apply(obj, hash) {
		delta.AppliedObjs = append(delta.AppliedObjs, obj)
		t.record(delta)
	}

	return delta
}

func (t *Tracer) Delete(ctx context.Context, obj *unstructured.Unstructured, ts int64) error {
	delta := t.deleteLocked(obj, ts)

	return t.writeJournal(ctx, delta)
}

func (t *Tracer) deleteLocked(obj *unstructured.Unstructured, ts int64) entity.TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.index, ObjectKey(obj))

	delta := entity.TraceEvent{Ts: ts, DeletedObjs: []*unstructured.Unstructured{obj}}
	t.record(delta)

	return delta
}

// ReplaceAll replaces the state of gvk by objs. Objects of gvk missing from objs are recorded as deleted,
// new or modified ones as applied. Other resource types are not affected.
// Nothing changes if any object can't be hashed.
func (t *Tracer) ReplaceAll(ctx context.Context, gvk schema.GroupVersionKind, objs []*unstructured.Unstructured, ts int64) error {
	hashes := make([]uint64, len(objs))

	for i, obj := range objs {
		hash, err := ContentHash(obj)
		if err != nil {
			return err
		}

		hashes[i] = hash
	}

	delta := t.replaceAllLocked(gvk, objs, hashes, ts)

	t.logInfo(2, "Resource type resynced", "gvk", gvk.String(), "objects", len(objs), "applied", len(delta.AppliedObjs), "deleted", len(delta.DeletedObjs))

	return t.writeJournal(ctx, delta)
}

func (t *Tracer) replaceAllLocked(gvk schema.GroupVersionKind, objs []*unstructured.Unstructured, hashes []uint64, ts int64) entity.TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	delta := entity.TraceEvent{Ts: ts}
	present := make(map[string]struct{}, len(objs))

	for i, obj := range objs {
		present[ObjectKey(obj)] = struct{}{}

		if t.apply(obj, hashes[i]) {
			delta.AppliedObjs = append(delta.AppliedObjs, obj)
		}
	}

	// sorted so the recorded deletions don't depend on map ordering
	keys := make([]string, 0)

	for key, entry := range t.index {
		if entry.gvk != gvk {
			continue
		}

		if _, ok := present[key]; !ok {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		delta.DeletedObjs = append(delta.DeletedObjs, t.index[key].obj)
		delete(t.index, key)
	}

	if !delta.Empty() {
		t.record(delta)
	}

	return delta
}

// Export returns the events in [start, end) and the current index.
func (t *Tracer) Export(start, end int64) (entity.ExportedTrace, error) {
	if end < start {
		return entity.ExportedTrace{}, fmt.Errorf("%w: end %d is before start %d", ErrInvalidWindow, end, start)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ret := entity.ExportedTrace{
		Version: entity.TraceVersion,
		Start:   start,
		End:     end,
		Config:  t.config,
		Events:  []entity.TraceEvent{},
		Index:   make(map[string]uint64, len(t.index)),
	}

	for _, event := range t.events {
		if event.Ts >= start && event.Ts < end {
			ret.Events = append(ret.Events, copyEvent(event))
		}
	}

	for key, entry := range t.index {
		ret.Index[key] = entry.hash
	}

	return ret, nil
}

// apply indexes obj and reports whether it is new or modified. Must be called with the lock held.
func (t *Tracer) apply(obj *unstructured.Unstructured, hash uint64) bool {
	key := ObjectKey(obj)

	previous, known := t.index[key]
	if known && previous.hash == hash {
		return false
	}

	t.index[key] = indexEntry{
		hash: hash,
		gvk:  obj.GroupVersionKind(),
		obj:  obj,
	}

	return true
}

// record appends delta to the history, merging it with the last event of the same second. Must be called with the lock held.
func (t *Tracer) record(delta entity.TraceEvent) {
	last := len(t.events) - 1

	if last >= 0 && t.events[last].Ts == delta.Ts {
		t.events[last].AppliedObjs = append(t.events[last].AppliedObjs, delta.AppliedObjs...)
		t.events[last].DeletedObjs = append(t.events[last].DeletedObjs, delta.DeletedObjs...)
	} else {
		t.events = append(t.events, copyEvent(delta))
	}

	t.applyRetention()
}

func (t *Tracer) applyRetention() {
	if t.retention <= 0 {
		return
	}

	oldest := t.clock.Now().Add(-t.retention).Unix()

	i := 0
	for i < len(t.events) && t.events[i].Ts < oldest {
		i++
	}

	if i > 0 {
		t.events = append([]entity.TraceEvent(nil), t.events[i:]...)
	}
}

func (t *Tracer) writeJournal(ctx context.Context, delta entity.TraceEvent) error {
	if t.journal == nil || delta.Empty() {
		return nil
	}

	err := t.journal.WriteTraceEvent(ctx, delta)
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	return nil
}

func (t *Tracer) logInfo(level int, msg string, keysAndValues ...any) {
	if t.logger == nil {
		return
	}

	t.logger.V(level).Info(msg, keysAndValues...)
}

func copyEvent(event entity.TraceEvent) entity.TraceEvent {
	return entity.TraceEvent{
		Ts:          event.Ts,
		AppliedObjs: append([]*unstructured.Unstructured{}, event.AppliedObjs...),
		DeletedObjs: append([]*unstructured.Unstructured{}, event.DeletedObjs...),
	}
}

// ObjectKey identifies an object across resource types: <apiVersion>.<kind>:<namespace>/<name>.
func ObjectKey(obj *unstructured.Unstructured) string {
	return fmt.Sprintf("%s.%s:%s/%s", obj.GetAPIVersion(), obj.GetKind(), obj.GetNamespace(), obj.GetName())
}

// ContentHash hashes obj without the fields changing on every write (resourceVersion, managedFields, status...).
func ContentHash(obj *unstructured.Unstructured) (uint64, error) {
	content := obj.DeepCopy()

	unstructured.RemoveNestedField(content.Object, "metadata", "resourceVersion")
	unstructured.RemoveNestedField(content.Object, "metadata", "generation")
	unstructured.RemoveNestedField(content.Object, "metadata", "managedFields")
	unstructured.RemoveNestedField(content.Object, "status")

	// map keys are sorted by encoding/json
	data, err := json.Marshal(content.Object)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", ObjectKey(obj), err)
	}

	return xxhash.Sum64(data), nil
}
