// Package storage moves asset bytes between the local machine and the object
// store backing a T2D2 project. The T2D2 API only registers assets; the bytes
// themselves live in the project's S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrObjectNotFound is returned by stores when a key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Store reads and writes objects.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string, w io.Writer) (int64, error)
}

// ParseObjectURL splits an S3 virtual-hosted URL such as
// https://bucket.s3.amazonaws.com/projects/1/images/a.jpg into bucket and key.
// The bucket is the first label of the host.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("storage: parse object url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("storage: object url %q has no host", raw)
	}
	bucket = strings.SplitN(u.Hostname(), ".", 2)[0]
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage: object url %q is missing bucket or key", raw)
	}
	return bucket, key, nil
}

// BucketFromBaseURL returns the bucket named by an S3 base URL.
func BucketFromBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("storage: parse base url: %w", err)
	}
	bucket := strings.SplitN(u.Hostname(), ".", 2)[0]
	if bucket == "" {
		return "", fmt.Errorf("storage: base url %q has no bucket", raw)
	}
	return bucket, nil
}
