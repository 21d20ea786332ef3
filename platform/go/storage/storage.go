package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ObjectLocation describes where a blob should live.
type ObjectLocation struct {
	Bucket   string
	FullPath string
}

// ResolveObjectLocation combines the tenant prefix and a logical key into a bucket/path pair.
//   - bucket comes from deployment configuration (STORAGE_BUCKET, "branding" by default).
//   - every object of a tenant lives under "<tenantID>/".
//   - logicalKey is a tenant-relative key such as "logos/<uuid>.png".
func ResolveObjectLocation(tenantID, bucket, logicalKey string) (ObjectLocation, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return ObjectLocation{}, fmt.Errorf("bucket is required")
	}
	tenantID = strings.Trim(strings.TrimSpace(tenantID), "/")
	if tenantID == "" {
		return ObjectLocation{}, fmt.Errorf("tenant id is required")
	}
	key := strings.TrimPrefix(strings.TrimSpace(logicalKey), "/")
	if key == "" {
		return ObjectLocation{}, fmt.Errorf("logical key is required")
	}

	fullPath := path.Clean(tenantID + "/" + key)
	if !strings.HasPrefix(fullPath, tenantID+"/") {
		return ObjectLocation{}, fmt.Errorf("logical key %q escapes the tenant prefix", logicalKey)
	}

	return ObjectLocation{Bucket: bucket, FullPath: fullPath}, nil
}

// Bucket stores public assets.
type Bucket interface {
	// Put writes body at loc and returns the public URL of the object.
	Put(ctx context.Context, loc ObjectLocation, contentType string, body io.Reader) (string, error)
	// Check verifies the bucket is reachable and the prefix is accessible.
	Check(ctx context.Context, bucket, prefix string) error
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
