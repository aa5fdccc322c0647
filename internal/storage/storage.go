package storage

import "context"

// ContentStore is durable blob storage keyed by a caller-supplied path. It is
// addressable, not versioned: storing to an existing path overwrites it.
type ContentStore interface {
	Store(ctx context.Context, path string, data []byte) error
	Retrieve(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
