package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/config"
)

const valkeyWriteTimeout = 5 * time.Second

// CreateValkeyClient connects to the journal instance and checks it answers.
// The client is named after the journal key prefix so several tracers sharing
// an instance can be told apart in CLIENT LIST.
func CreateValkeyClient(ctx context.Context, conf config.Valkey) (valkey.Client, common.CloseFunc, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{conf.URL},
		Password:         conf.Creds.Password,
		ClientName:       valkeyClientName(conf.KeyPrefix),
		ConnWriteTimeout: valkeyWriteTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create valkey client for %s: %w", conf.URL, err)
	}

	err = client.Do(ctx, client.B().Ping().Build()).Error()
	if err != nil {
		client.Close()

		return nil, nil, fmt.Errorf("valkey %s is not reachable: %w", conf.URL, err)
	}

	closeClient := func(context.Context) error {
		client.Close()

		return nil
	}

	return client, closeClient, nil
}

func valkeyClientName(keyPrefix string) string {
	if keyPrefix == "" {
		return "sk-tracer"
	}

	return fmt.Sprintf("sk-tracer-%s", keyPrefix)
}
