package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	Metrics          Metrics
	Logs             Logs
	Kubernetes       Kubernetes
	Tracer           Tracer
	Journal          Journal
	Export           Export
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

// Kubernetes

type Kubernetes struct {
	// Kubeconfig is optional, in-cluster config or the default loading rules are used otherwise
	Kubeconfig string
	QPS        float32
	Burst      int
}

// Tracer

type Tracer struct {
	// ConfigFile is an optional tracer configuration file, see LoadTracerFile
	ConfigFile     string
	TrackedObjects []TrackedObject
	Retention      time.Duration
	WatchBackoff   Backoff
}

type TrackedObject struct {
	APIVersion string
	Kind       string
	StripPaths []string
}

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Journal

type Journal struct {
	Valkey Valkey
	Kafka  Kafka
	Retry  Retry
}

func (j Journal) Enabled() bool {
	return j.Valkey.Enabled() || j.Kafka.Enabled()
}

type Retry struct {
	MaxAttempt uint
	Delay      time.Duration
}

type Valkey struct {
	URL        string
	Creds      ValkeyCreds
	Expiration time.Duration
	KeyPrefix  string
}

func (v Valkey) Enabled() bool {
	return v.URL != ""
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}

type Kafka struct {
	Broker KafkaBroker
	Topic  string
}

func (k Kafka) Enabled() bool {
	return k.Broker.URLs != ""
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

type KafkaCreds struct {
	// Mechanism is either SCRAM-SHA-256 or SCRAM-SHA-512
	Mechanism string
	Username  string
	Password  string
}

func (c KafkaCreds) Enabled() bool {
	return c.Username != ""
}

func (c KafkaCreds) String() string {
	if c.Username != "" && c.Password != "" {
		return "creds set"
	}

	return "no creds"
}

// Export

type Export struct {
	Interval time.Duration
	S3       S3
}

func (e Export) Enabled() bool {
	return e.S3.Bucket != ""
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}
