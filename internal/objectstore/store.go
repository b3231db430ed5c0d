package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a ref does not exist in the store.
var ErrNotFound = errors.New("object not found")

// Store is content-addressed binary storage for media payloads. Both Put and
// Get stream, so large files never have to fit in memory. Implementations
// must be safe for concurrent use on distinct refs.
type Store interface {
	// Put streams r into the store and returns the new opaque ref.
	Put(ctx context.Context, r io.Reader, contentType string) (string, error)

	// Get opens the object identified by ref for reading. Returns
	// ErrNotFound if the ref does not exist. The caller closes the reader.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Exists reports whether ref is present in the store.
	Exists(ctx context.Context, ref string) (bool, error)
}
