package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/simkube-go/sk-tracer/internal/domain/repo"
)

// Exporter periodically writes the part of the trace recorded since its previous export.
type Exporter struct {
	tracer   *Tracer
	writer   repo.TraceWriter
	clock    clockwork.Clock
	interval time.Duration

	// start of the next export window
	next int64

	logger *logr.Logger
}

func NewExporter(tracer *Tracer, writer repo.TraceWriter, clock clockwork.Clock, interval time.Duration) *Exporter {
	return &Exporter{
		tracer:   tracer,
		writer:   writer,
		clock:    clock,
		interval: interval,
		next:     clock.Now().Unix(),
	}
}

func (e *Exporter) WithLogger(logger logr.Logger) *Exporter {
	e.logger = &logger

	return e
}

// Start exports every interval until ctx is done, then flushes what is left.
// A failed periodic export is retried on the next tick, with a larger window.
func (e *Exporter) Start(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// current second is included, nothing will be recorded anymore
			err := e.export(context.WithoutCancel(ctx), e.clock.Now().Unix()+1)
			if err != nil {
				e.logError(err, "Final export failed")

				return err
			}

			return ctx.Err()
		case <-ticker.Chan():
			// current second is excluded, it may still receive events
			err := e.export(ctx, e.clock.Now().Unix())
			if err != nil {
				e.logError(err, "Export failed, will retry on next tick")
			}
		}
	}
}

func (e *Exporter) export(ctx context.Context, end int64) error {
	if end <= e.next {
		return nil
	}

	trace, err := e.tracer.Export(e.next, end)
	if err != nil {
		return err
	}

	if len(trace.Events) == 0 {
		e.logInfo(2, "Nothing to export", "start", e.next, "end", end)

		e.next = end

		return nil
	}

	err = e.writer.WriteTrace(ctx, trace)
	if err != nil {
		return fmt.Errorf("failed to write trace [%d, %d): %w", e.next, end, err)
	}

	e.logInfo(1, "Trace exported", "start", e.next, "end", end, "events", len(trace.Events))

	e.next = end

	return nil
}

func (e *Exporter) logInfo(level int, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.V(level).Info(msg, keysAndValues...)
}

func (e *Exporter) logError(err error, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.Error(err, msg, keysAndValues...)
}
