package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no object exists under the given name.
	ErrNotFound = errors.New("object not found")

	// ErrNotConfigured is returned by a backend that has no usable
	// credentials. Callers translate it into a "storage not configured"
	// response instead of crashing.
	ErrNotConfigured = errors.New("storage not configured")
)

// Storage is the contract shared by the local-filesystem and blob-store
// backends. Implementations make a single attempt per call; errors
// propagate without retries.
type Storage interface {
	// Put writes data under the requested name and returns the name the
	// backend actually stored it as. The physical name may differ from the
	// requested one when the backend injects its own token.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)

	// Get retrieves an object's bytes and info by physical name.
	// Returns ErrNotFound when no object matches exactly.
	Get(ctx context.Context, name string) ([]byte, ObjectInfo, error)

	// List enumerates every stored object, transparently concatenating
	// backend pages.
	List(ctx context.Context) ([]ObjectInfo, error)

	// Delete removes the object stored under name.
	Delete(ctx context.Context, name string) error
}

// ObjectInfo describes a stored object without its bytes.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	URL          string
}

// Unconfigured is the backend used when cloud mode is enabled but
// credentials are missing. Every operation fails with ErrNotConfigured.
type Unconfigured struct{}

var _ Storage = Unconfigured{}

func (Unconfigured) Put(context.Context, string, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) Get(context.Context, string) ([]byte, ObjectInfo, error) {
	return nil, ObjectInfo{}, ErrNotConfigured
}

func (Unconfigured) List(context.Context) ([]ObjectInfo, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) Delete(context.Context, string) error {
	return ErrNotConfigured
}
