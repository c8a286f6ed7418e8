package journal

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/domain/entity"
)

var retryableKafkaErrors = []error{
	sarama.ErrOutOfBrokers,
	sarama.ErrNotConnected,
	sarama.ErrLeaderNotAvailable,
	sarama.ErrNotLeaderForPartition,
	sarama.ErrRequestTimedOut,
	sarama.ErrNetworkException,
	sarama.ErrNotEnoughReplicas,
	sarama.ErrNotEnoughReplicasAfterAppend,
}

// KafkaJournal publishes every trace event, as json, to a kafka topic. Messages are keyed by timestamp.
type KafkaJournal struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaJournal(producer sarama.SyncProducer, topic string) KafkaJournal {
	return KafkaJournal{
		producer: producer,
		topic:    topic,
	}
}

func (j KafkaJournal) WriteTraceEvent(_ context.Context, event entity.TraceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return common.NewError(err, false, "failed to marshal event %d", event.Ts)
	}

	msg := &sarama.ProducerMessage{
		Topic: j.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(event.Ts, 10)),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = j.producer.SendMessage(msg)
	if err != nil {
		return common.NewError(err, isKafkaRetryable(err), "failed to publish event %d on %s", event.Ts, j.topic)
	}

	return nil
}

func isKafkaRetryable(err error) bool {
	for _, retryable := range retryableKafkaErrors {
		if errors.Is(err, retryable) {
			return true
		}
	}

	return false
}
