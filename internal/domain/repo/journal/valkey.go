package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/domain/entity"
)

// ValkeyJournal appends every trace event, as json, to a valkey list.
type ValkeyJournal struct {
	client     valkey.Client
	key        string
	expiration time.Duration
}

func NewValkeyJournal(client valkey.Client, keyPrefix string, expiration time.Duration) ValkeyJournal {
	return ValkeyJournal{
		client:     client,
		key:        EventsKey(keyPrefix),
		expiration: expiration,
	}
}

// EventsKey is the list holding the journal.
func EventsKey(keyPrefix string) string {
	return fmt.Sprintf("%s:events", keyPrefix)
}

func (j ValkeyJournal) WriteTraceEvent(ctx context.Context, event entity.TraceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return common.NewError(err, false, "failed to marshal event %d", event.Ts)
	}

	// Append event
	command := j.client.B().Rpush().Key(j.key).Element(string(data)).Build()

	err = j.client.Do(ctx, command).Error()
	if err != nil {
		return common.NewError(err, isRetryable(err), "failed to push event %d", event.Ts)
	}

	// Set expiration, refreshed on each write
	expireCommand := j.client.B().Expire().Key(j.key).Seconds(int64(j.expiration.Seconds())).Build()

	err = j.client.Do(ctx, expireCommand).Error()
	if err != nil {
		return common.NewError(err, isRetryable(err), "failed to set expiration")
	}

	return nil
}

func isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Valkey specific error
	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
