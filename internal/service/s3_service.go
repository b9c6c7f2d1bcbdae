package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/config"
)

// S3Service archives catalog snapshots to an S3 bucket.
type S3Service struct {
	client *s3.Client
	bucket string
	prefix string
	region string
}

// NewS3Service creates an S3 archiver for bucket. Explicit credentials are
// used when configured; otherwise the default AWS credential chain applies.
// A non-empty endpoint targets an S3-compatible service with path-style URLs.
func NewS3Service(ctx context.Context, s3cfg *config.S3Config, bucket, prefix string) (*S3Service, error) {
	if s3cfg == nil {
		return nil, fmt.Errorf("S3 config is nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s3cfg.Region)}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Service{
		client: client,
		bucket: bucket,
		prefix: prefix,
		region: s3cfg.Region,
	}, nil
}

// Archive uploads a snapshot document under prefix+name and returns its URL.
func (s *S3Service) Archive(ctx context.Context, name string, data []byte) (string, error) {
	key := s.objectKey(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload snapshot to S3")
		return "", fmt.Errorf("failed to upload: %w", err)
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Snapshot archived to S3")
	return s.GetObjectURL(key), nil
}

func (s *S3Service) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + name
}

// GetObjectURL returns the URL for an S3 object
func (s *S3Service) GetObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
