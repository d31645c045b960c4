package rulepack

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source fetches a rule pack from an S3 object. A custom endpoint
// (MinIO, LocalStack) can be supplied via KEEL_S3_ENDPOINT.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string
}

func NewS3Source(ctx context.Context, bucket, key string) (*S3Source, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("rulepack: load AWS config: %w", err)
	}
	clientOpts := func(o *s3.Options) {
		if endpoint := os.Getenv("KEEL_S3_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // required for MinIO/LocalStack
		}
	}
	return &S3Source{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: bucket,
		key:    key,
	}, nil
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("rulepack: s3 get %s/%s: %w", s.bucket, s.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("rulepack: s3 read %s/%s: %w", s.bucket, s.key, err)
	}
	return data, nil
}

func (s *S3Source) Describe() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }
