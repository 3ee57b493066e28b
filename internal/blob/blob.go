// Package blob provides object storage backends for rehosted media.
package blob

import (
	"context"
	"time"
)

// Store writes objects and hands out externally reachable URIs for them.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
