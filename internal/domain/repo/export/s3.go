package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/simkube-go/sk-tracer/internal/domain/entity"
	"github.com/simkube-go/sk-tracer/internal/log"
	"github.com/simkube-go/sk-tracer/internal/version"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/trace-<start>-<end>.json"

	contentType = "application/json"
)

var ErrEmptyWindow = errors.New("empty trace window")

// PutObjectAPI is the part of the s3 client used to write traces.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer writes each exported trace as a json object, partitioned by the day of its start.
type S3Writer struct {
	s3client PutObjectAPI

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client PutObjectAPI, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "failed to get hostname, falling backing to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		bucket:   bucket,
		prefix:   prefix,
		hostname: hostname,
	}
}

func (w S3Writer) WriteTrace(ctx context.Context, trace entity.ExportedTrace) error {
	// Compute object key
	key, err := w.computeObjectKey(trace.Start, trace.End)
	if err != nil {
		return fmt.Errorf("failed to compute object key: %w", err)
	}

	// Marshal trace
	b, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	// Write file
	params := &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: pointer(contentType),
		Metadata: map[string]string{
			"branch":   version.Branch,
			"revision": version.Revision,
			"host":     w.hostname,
		},
	}

	_, err = w.s3client.PutObject(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to write %s in s3: %w", key, err)
	}

	return nil
}

func (w S3Writer) computeObjectKey(start, end int64) (string, error) {
	if end <= start {
		return "", fmt.Errorf("%w: [%d, %d)", ErrEmptyWindow, start, end)
	}

	day := time.Unix(start, 0).UTC()

	template := strings.NewReplacer(
		"<prefix>", w.prefix,
		"<year>", fmt.Sprintf("%04d", day.Year()),
		"<month>", fmt.Sprintf("%02d", day.Month()),
		"<day>", fmt.Sprintf("%02d", day.Day()),
		"<start>", fmt.Sprintf("%d", start),
		"<end>", fmt.Sprintf("%d", end),
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/"), nil
}

func pointer[T any](v T) *T {
	return &v
}
