package factory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/IBM/sarama"

	"github.com/simkube-go/sk-tracer/internal/common"
	"github.com/simkube-go/sk-tracer/internal/config"
)

func CreateKafkaProducer(kafkaConfig config.Kafka) (sarama.SyncProducer, common.CloseFunc, error) {
	conf, err := newSaramaConfig(kafkaConfig)
	if err != nil {
		return nil, nil, err
	}

	// Kafka URLs
	urls := strings.Split(kafkaConfig.Broker.URLs, ",")

	ret, err := sarama.NewSyncProducer(urls, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	shutdown := func(context.Context) error {
		return ret.Close()
	}

	return ret, shutdown, nil
}

func newSaramaConfig(kafkaConfig config.Kafka) (*sarama.Config, error) {
	conf := sarama.NewConfig()

	// mandatory for a sync producer
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true

	// journal entries must not be lost
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Idempotent = true
	conf.Net.MaxOpenRequests = 1

	// clientID
	conf.ClientID = computeClientID(kafkaConfig.Topic)

	// kafka version
	version, err := sarama.ParseKafkaVersion(kafkaConfig.Broker.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kafka version: %w", err)
	}

	conf.Version = version

	// SASL
	creds := kafkaConfig.Broker.Creds
	if creds.Enabled() {
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = creds.Username
		conf.Net.SASL.Password = creds.Password

		switch creds.Mechanism {
		case config.ScramSHA256:
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
		case config.ScramSHA512:
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
		default:
			return nil, fmt.Errorf("unsupported sasl mechanism %q", creds.Mechanism)
		}
	}

	err = conf.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}

	return conf, nil
}

func computeClientID(topic string) string {
	prefix, err := os.Hostname()
	if err != nil {
		prefix = fmt.Sprintf("clientid-%v", topic)
	}

	return fmt.Sprintf("%s-%x", prefix, rand.Int31())
}
