package port

import (
	"context"
	"errors"
)

var ErrCacheMiss = errors.New("cache miss")

// ArtifactCache is a bounded blob cache for encoded slide artifacts.
// Entries expire by age and are evicted least-recently-accessed first.
type ArtifactCache interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
	Get(ctx context.Context, key string) (data []byte, contentType string, err error)
}
