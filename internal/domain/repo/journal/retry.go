package journal

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/domain/entity"
	"github.com/simkube-go/sk-tracer/internal/domain/repo"
)

type RetryConfig struct {
	MaxAttempt uint
	Delay      time.Duration
}

// RetryWriter retries the writes failing with a common.ErrRetryableError.
type RetryWriter struct {
	writer repo.JournalWriter
	config RetryConfig
}

func NewRetryWriter(writer repo.JournalWriter, config RetryConfig) RetryWriter {
	return RetryWriter{
		writer: writer,
		config: config,
	}
}

func (r RetryWriter) WriteTraceEvent(ctx context.Context, event entity.TraceEvent) error {
	return retry.Do(
		func() error {
			return r.writer.WriteTraceEvent(ctx, event)
		},
		retry.Context(ctx),
		retry.Attempts(r.config.MaxAttempt),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, common.ErrRetryableError)
		}),
		retry.Delay(r.config.Delay),
		retry.LastErrorOnly(true),
	)
}
