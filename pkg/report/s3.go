package report

import (
	"context"
	"path"

	s3store "github.com/logflow/sweep/pkg/storage/s3"
)

// S3Backend uploads summaries to s3://<bucket>/<prefix><id>.json.
type S3Backend struct {
	client *s3store.Client
	bucket string
	prefix string
}

// NewS3Backend creates an S3 summary backend.
func NewS3Backend(client *s3store.Client, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of a summary with id.
func (b *S3Backend) Key(id string) string {
	return path.Join(b.prefix, id+".json")
}

// Publish implements Backend.
func (b *S3Backend) Publish(ctx context.Context, s *Summary) error {
	data, err := s.JSON()
	if err != nil {
		return err
	}
	return b.client.Upload(ctx, b.bucket, b.Key(s.ID), data, "application/json")
}

// Name implements Backend.
func (b *S3Backend) Name() string {
	return "s3"
}
