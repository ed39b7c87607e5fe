package storage

import (
	"context"
)

// ObjectStorage defines the object store holding materialized audio.
type ObjectStorage interface {
	// Put stores data under key, replacing any existing object
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// ResolveURL returns the playback URL for key, or an error for a malformed key
	ResolveURL(key string) (string, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// EnsureBucket creates the bucket if it doesn't exist
	EnsureBucket(ctx context.Context) error
}
