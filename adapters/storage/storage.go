// Package storage provides adapters for persisting processed images.
package storage

import (
	"context"
	"io"
)

// Key uniquely identifies a stored image.
type Key struct {
	Bucket string
	Path   string
}

// Adapter persists processed images and retrieves them later.
type Adapter interface {
	Put(ctx context.Context, key Key, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key Key) (io.ReadCloser, error)
	Delete(ctx context.Context, key Key) error
	Exists(ctx context.Context, key Key) (bool, error)
}
