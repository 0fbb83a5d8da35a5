// Package blob fetches raw artifact and model-bundle bytes from object
// storage: a single fetch-by-key operation with no retries at this layer.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Fetcher downloads the bytes stored at storageKey. Implementations must
// be safe for concurrent use - the poller and the HTTP facade both call
// through it.
type Fetcher interface {
	Fetch(ctx context.Context, storageKey string) ([]byte, error)
}

// S3Fetcher implements Fetcher against a single configured bucket.
type S3Fetcher struct {
	client *s3.Client
	bucket string
}

// NewS3Fetcher builds a fetcher bound to bucket using an already
// configured S3 client (cmd/worker/main.go resolves credentials and
// region).
func NewS3Fetcher(client *s3.Client, bucket string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket}
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, storageKey string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", f.bucket, storageKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", f.bucket, storageKey, err)
	}

	return data, nil
}
