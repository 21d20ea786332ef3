package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const defaultGCSPublicURL = "https://storage.googleapis.com"

// GCSBucket stores assets in Google Cloud Storage.
type GCSBucket struct {
	client    *storage.Client
	publicURL string
}

// NewGCSBucket wraps client. publicBaseURL defaults to the storage.googleapis.com endpoint.
func NewGCSBucket(client *storage.Client, publicBaseURL string) *GCSBucket {
	if client == nil {
		panic("storage client is required")
	}
	if publicBaseURL == "" {
		publicBaseURL = defaultGCSPublicURL
	}
	return &GCSBucket{client: client, publicURL: publicBaseURL}
}

func (b *GCSBucket) Put(ctx context.Context, loc ObjectLocation, contentType string, body io.Reader) (string, error) {
	w := b.client.Bucket(loc.Bucket).Object(loc.FullPath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}

	return joinURL(b.publicURL, loc.Bucket, loc.FullPath), nil
}

// Check reads the bucket attributes and lists at most one object under prefix; empty is fine.
func (b *GCSBucket) Check(ctx context.Context, bucket, prefix string) error {
	if bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	bkt := b.client.Bucket(bucket)
	if _, err := bkt.Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}

	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("list prefix: %w", err)
	}
	return nil
}
