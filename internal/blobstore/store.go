// Package blobstore defines the blob store collaborator contract: source
// documents live at "{srd_id}/{filename}" and serialized index artifacts at
// "{srd_id}/index/...". A filesystem implementation is provided for local
// deployments and tests; cloud object stores plug in behind the same
// interface.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists for the given key.
var ErrNotFound = errors.New("object not found")

// Store is the blob store collaborator interface.
type Store interface {
	// Get returns the object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// List returns all keys with the given prefix, sorted.
	// An empty prefix lists every key.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object under key. Deleting a missing key
	// returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}
