package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/teranos/trajview/trip"
)

const (
	// DefaultBucket holds the pipeline's per-dataset statistics exports.
	DefaultBucket = "sc-pipeline-output"
	// DefaultRegion is the bucket's region.
	DefaultRegion = "us-east-1"
	// DefaultKeyTemplate maps a dataset key to its object key.
	DefaultKeyTemplate = "statistics/%s_statistics_1000_82000.csv"
)

// ObjectGetter is the slice of the S3 API the source needs. *s3.Client satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches tables from an object store bucket.
type S3Source struct {
	client      ObjectGetter
	bucket      string
	keyTemplate string
	logger      *slog.Logger
}

// NewS3Source creates an S3Source over an existing client.
func NewS3Source(client ObjectGetter, bucket string, logger *slog.Logger) *S3Source {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &S3Source{
		client:      client,
		bucket:      bucket,
		keyTemplate: DefaultKeyTemplate,
		logger:      logger,
	}
}

// NewS3SourceFromEnv builds a client from the ambient AWS environment.
func NewS3SourceFromEnv(ctx context.Context, bucket, region string, logger *slog.Logger) (*S3Source, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, trip.NewFall(trip.Load, "load aws config", err, trip.Context{"region": region})
	}
	return NewS3Source(s3.NewFromConfig(cfg), bucket, logger), nil
}

// ObjectKey returns the object key for a dataset key.
func (s *S3Source) ObjectKey(key string) string {
	return fmt.Sprintf(s.keyTemplate, key)
}

// Fetch downloads and parses the dataset. The body is parsed without comment handling.
func (s *S3Source) Fetch(ctx context.Context, key string) (*Table, error) {
	objectKey := s.ObjectKey(key)
	s.logger.Info("downloading table", "bucket", s.bucket, "key", objectKey)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, trip.NewFall(trip.Load, "get object", err, trip.Context{
			"bucket": s.bucket,
			"key":    objectKey,
		})
	}
	defer out.Body.Close()

	return ParseCSV(out.Body, CSVOptions{})
}
