package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LocalBucket stores assets on the local filesystem under root/<bucket>/ and
// serves them through Handler.
type LocalBucket struct {
	root      string
	publicURL string
}

// NewLocalBucket creates root if needed. publicBaseURL is the externally
// visible prefix of Handler, e.g. http://localhost:8080/assets.
func NewLocalBucket(root, publicBaseURL string) (*LocalBucket, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalBucket{root: root, publicURL: publicBaseURL}, nil
}

func (b *LocalBucket) Put(ctx context.Context, loc ObjectLocation, _ string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(b.root, loc.Bucket, filepath.FromSlash(loc.FullPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}

	return joinURL(b.publicURL, loc.Bucket, loc.FullPath), nil
}

// Check ensures the bucket directory exists and is writable.
func (b *LocalBucket) Check(_ context.Context, bucket, prefix string) error {
	if bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	dir := filepath.Join(b.root, bucket, filepath.FromSlash(prefix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefix dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Handler serves stored objects; mount it under the public base path.
func (b *LocalBucket) Handler() http.Handler {
	return http.FileServer(http.Dir(b.root))
}
