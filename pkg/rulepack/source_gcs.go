package rulepack

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSource fetches a rule pack from a Google Cloud Storage object.
// Credentials come from Application Default Credentials.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string
}

func NewGCSSource(ctx context.Context, bucket, object string) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("rulepack: create GCS client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, object: object}, nil
}

func (g *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("rulepack: gcs open %s/%s: %w", g.bucket, g.object, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rulepack: gcs read %s/%s: %w", g.bucket, g.object, err)
	}
	return data, nil
}

func (g *GCSSource) Describe() string { return fmt.Sprintf("gs://%s/%s", g.bucket, g.object) }
