package journal

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/simkube-go/sk-tracer/internal/domain/entity"
	"github.com/simkube-go/sk-tracer/internal/domain/repo"
)

// ParallelWriter writes each event to every journal concurrently.
type ParallelWriter struct {
	writers []repo.JournalWriter
}

func NewParallelWriter(writers ...repo.JournalWriter) ParallelWriter {
	return ParallelWriter{
		writers: writers,
	}
}

func (p ParallelWriter) WriteTraceEvent(ctx context.Context, event entity.TraceEvent) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, w := range p.writers {
		writer := w

		group.Go(func() error {
			return writer.WriteTraceEvent(ctx, event)
		})
	}

	return group.Wait()
}
