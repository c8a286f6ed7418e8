package repo

import (
	"context"

	"github.com/simkube-go/sk-tracer/internal/domain/entity"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

type JournalWriter interface {
	WriteTraceEvent(ctx context.Context, event entity.TraceEvent) error
}

type TraceWriter interface {
	WriteTrace(ctx context.Context, trace entity.ExportedTrace) error
}
