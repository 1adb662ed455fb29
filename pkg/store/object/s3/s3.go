// Package s3 implements the object-store adapter (pkg/store/object.Store)
// over Amazon S3 or an S3-compatible endpoint, using streaming multipart
// uploads so that multi-gigabyte payloads never sit fully in memory.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/linegrid/linegrid/internal/bytesize"
	"github.com/linegrid/linegrid/internal/telemetry"
	"github.com/linegrid/linegrid/pkg/store/object"
)

// MinPartSize is the smallest part size S3 accepts for any part except the
// last.
const MinPartSize = 5 * bytesize.MiB

// Config configures the S3-backed object store.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string

	// Endpoint overrides the default AWS endpoint resolution, for
	// S3-compatible services (MinIO, etc). Empty uses the real AWS endpoint.
	Endpoint string

	// PartSize is the size of each multipart upload part. Must be >= 5 MiB;
	// values below that are clamped up.
	PartSize bytesize.ByteSize

	// MaxParallelUploads bounds how many parts may be in flight at once, so
	// memory use stays O(PartSize * MaxParallelUploads) regardless of total
	// payload size.
	MaxParallelUploads int

	Metrics Metrics
}

func (c *Config) applyDefaults() {
	if c.PartSize < MinPartSize {
		c.PartSize = MinPartSize
	}
	if c.MaxParallelUploads <= 0 {
		c.MaxParallelUploads = 4
	}
}

// Store implements object.Store over an S3 client.
type Store struct {
	client   *s3.Client
	bucket   string
	partSize int64
	parallel int
	metrics  Metrics
}

// New builds an S3-backed Store from cfg, resolving credentials and region
// through the standard AWS SDK config loader.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		bucket:   NormalizeBucket(cfg.Bucket),
		partSize: int64(cfg.PartSize),
		parallel: cfg.MaxParallelUploads,
		metrics:  cfg.Metrics,
	}, nil
}

// NormalizeBucket strips a leading "s3://" and any trailing path segment
// from a configured bucket value.
func NormalizeBucket(raw string) string {
	b := raw
	const prefix = "s3://"
	if len(b) >= len(prefix) && b[:len(prefix)] == prefix {
		b = b[len(prefix):]
	}
	for i := 0; i < len(b); i++ {
		if b[i] == '/' {
			return b[:i]
		}
	}
	return b
}

// KeyFor implements object.Store.KeyFor.
func (s *Store) KeyFor(originalName string) string {
	return object.KeyFor(time.Now(), originalName)
}

// Probe implements object.Store.Probe with a cheap HeadBucket call.
func (s *Store) Probe(ctx context.Context) error {
	ctx, span := telemetry.StartStoreSpan(ctx, "probe", s.bucket, telemetry.StoreName("s3"), telemetry.StoreType("object"))
	defer span.End()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("s3 probe failed: %w", err)
	}
	return nil
}

// GetStream implements object.Store.GetStream.
func (s *Store) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, "get_stream", key, telemetry.StoreName("s3"), telemetry.StoreType("object"))
	defer span.End()

	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if s.metrics != nil {
		s.metrics.ObserveOperation("GetObject", time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return out.Body, nil
}
