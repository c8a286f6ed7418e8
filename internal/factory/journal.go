package factory

import (
	"context"
	"errors"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/config"
	"github.com/simkube-go/sk-tracer/internal/domain/repo"
	"github.com/simkube-go/sk-tracer/internal/domain/repo/journal"
)

/*
 * CreateJournal assembles the configured journals as follow:
 *
 *				---> valkey
 *	retry --> parallel ---|
 *				---> kafka
 *
 * It returns a nil writer when no journal is configured.
 */
func CreateJournal(ctx context.Context, conf config.Journal) (repo.JournalWriter, common.CloseFunc, error) {
	if !conf.Enabled() {
		return nil, common.NoopClose, nil
	}

	writers := []repo.JournalWriter{}
	closers := []common.CloseFunc{}

	closeAll := func(ctx context.Context) error {
		errs := []error{}

		for _, closer := range closers {
			errs = append(errs, closer(ctx))
		}

		return errors.Join(errs...)
	}

	if conf.Valkey.Enabled() {
		client, closer, err := CreateValkeyClient(ctx, conf.Valkey)
		if err != nil {
			return nil, nil, err
		}

		closers = append(closers, closer)
		writers = append(writers, journal.NewValkeyJournal(client, conf.Valkey.KeyPrefix, conf.Valkey.Expiration))
	}

	if conf.Kafka.Enabled() {
		producer, closer, err := CreateKafkaProducer(conf.Kafka)
		if err != nil {
			return nil, nil, errors.Join(err, closeAll(ctx))
		}

		closers = append(closers, closer)
		writers = append(writers, journal.NewKafkaJournal(producer, conf.Kafka.Topic))
	}

	var ret repo.JournalWriter = journal.NewParallelWriter(writers...)

	ret = journal.NewRetryWriter(ret, journal.RetryConfig{
		MaxAttempt: conf.Retry.MaxAttempt,
		Delay:      conf.Retry.Delay,
	})

	return ret, closeAll, nil
}
