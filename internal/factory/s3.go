package factory

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr"

	"github.com/simkube-go/sk-tracer/internal/config"
	"github.com/simkube-go/sk-tracer/internal/domain/repo/export"
	"github.com/simkube-go/sk-tracer/internal/log"
)

// CreateTraceWriter returns the s3 writer of exported traces.
func CreateTraceWriter(ctx context.Context, conf config.S3) (export.S3Writer, error) {
	client, err := CreateS3Client(ctx, conf)
	if err != nil {
		return export.S3Writer{}, err
	}

	return export.NewS3Writer(client, conf.Bucket, conf.KeyPrefix), nil
}

func CreateS3Client(ctx context.Context, conf config.S3) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithLogger(AWSLogger{log.Logger()}),
	}

	// Static credentials if set, default chain (env, irsa, ...) otherwise
	if conf.Creds.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(conf.Creds.AccessKeyID, conf.Creds.SecretAccessKey, "")))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	if conf.BaseEndpoint != "" {
		awsConfig.BaseEndpoint = pointer(normalizeEndpoint(conf.BaseEndpoint))
	}

	ret := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
	})

	return ret, nil
}

func normalizeEndpoint(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Sprintf("https://%s", endpoint)
	}

	return endpoint
}

// AWSLogger forwards the aws sdk logs to logr.
type AWSLogger struct {
	logger logr.Logger
}

func (a AWSLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	level := 0

	switch classification {
	case logging.Debug:
		level = 3
	case logging.Warn:
		level = 0
	default:
		return
	}

	msg := fmt.Sprintf(format, v...)

	a.logger.V(level).Info(msg)
}

func pointer[T any](v T) *T {
	return &v
}
