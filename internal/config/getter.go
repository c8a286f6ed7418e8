package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/simkube-go/sk-tracer/pkg/watch"
)

const prefix = "SKTRACER"

var ErrInvalidConfig = errors.New("invalid configuration")

// Parse reads the configuration file given as parameter, the environment and the tracer file if any.
func Parse(confFile string) (*Config, error) {
	conf := Config{}

	v := viper.New()

	setDefault(v)

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		v.SetConfigFile(confFile)

		err := v.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := v.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if conf.Tracer.ConfigFile != "" {
		objs, err := LoadTracerFile(conf.Tracer.ConfigFile)
		if err != nil {
			return &conf, err
		}

		conf.Tracer.TrackedObjects = append(conf.Tracer.TrackedObjects, objs...)
	}

	// Nothing tracked: fall back on pods only
	if len(conf.Tracer.TrackedObjects) == 0 {
		pods := watch.PodResource()

		conf.Tracer.TrackedObjects = []TrackedObject{{
			APIVersion: pods.GVK.GroupVersion().String(),
			Kind:       pods.GVK.Kind,
		}}
	}

	err = conf.Validate()
	if err != nil {
		return &conf, err
	}

	return &conf, nil
}

// Validate checks the values that can't be defaulted.
func (c Config) Validate() error {
	errs := []error{}

	for i, obj := range c.Tracer.TrackedObjects {
		_, err := obj.Resource()
		if err != nil {
			errs = append(errs, fmt.Errorf("tracer.trackedObjects[%d]: %w", i, err))
		}
	}

	if c.Kubernetes.QPS < 0 || c.Kubernetes.Burst < 0 {
		errs = append(errs, errors.New("kubernetes.qps and kubernetes.burst must be positive"))
	}

	if c.Journal.Kafka.Enabled() && c.Journal.Kafka.Topic == "" {
		errs = append(errs, errors.New("journal.kafka.topic is required"))
	}

	if c.Journal.Kafka.Broker.Creds.Enabled() {
		switch c.Journal.Kafka.Broker.Creds.Mechanism {
		case ScramSHA256, ScramSHA512:
		default:
			errs = append(errs, fmt.Errorf("unsupported kafka sasl mechanism %q", c.Journal.Kafka.Broker.Creds.Mechanism))
		}
	}

	if c.Export.Enabled() && c.Export.Interval <= 0 {
		errs = append(errs, errors.New("export.interval must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Resource converts the configuration of a tracked object into what the watcher expects.
func (o TrackedObject) Resource() (watch.TrackedResource, error) {
	return watch.NewTrackedResource(o.APIVersion, o.Kind, o.StripPaths)
}

// TrackedResources converts every tracked object.
func (t Tracer) TrackedResources() ([]watch.TrackedResource, error) {
	ret := make([]watch.TrackedResource, 0, len(t.TrackedObjects))

	for _, obj := range t.TrackedObjects {
		resource, err := obj.Resource()
		if err != nil {
			return nil, err
		}

		ret = append(ret, resource)
	}

	return ret, nil
}

const (
	ScramSHA256 = "SCRAM-SHA-256"
	ScramSHA512 = "SCRAM-SHA-512"
)

func setDefault(v *viper.Viper) {
	v.SetDefault("logs.level", 4)
	v.SetDefault("logs.encoder", EncoderTypeConsole)
	v.SetDefault("metrics.port", 7777)
	v.SetDefault("gracefulDuration", "10s")

	v.SetDefault("kubernetes.qps", 20)
	v.SetDefault("kubernetes.burst", 40)

	v.SetDefault("tracer.retention", "0s")
	v.SetDefault("tracer.watchBackoff.initial", "800ms")
	v.SetDefault("tracer.watchBackoff.max", "30s")

	v.SetDefault("journal.retry.maxAttempt", 5)
	v.SetDefault("journal.retry.delay", "100ms")
	v.SetDefault("journal.valkey.expiration", "24h")
	v.SetDefault("journal.valkey.keyPrefix", "sk-tracer")
	v.SetDefault("journal.kafka.broker.version", "3.6.0")
	v.SetDefault("journal.kafka.broker.creds.mechanism", ScramSHA512)

	v.SetDefault("export.interval", "5m")
	v.SetDefault("export.s3.keyPrefix", "traces")
}
