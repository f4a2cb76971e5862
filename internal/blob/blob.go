// Package blob defines the object-storage port used by the virtual
// filesystem. Objects are addressed by hierarchical path strings
// ("userID/Images/...-photo.png") and served to clients through public
// URLs derived from a configured base URL.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when an object does not exist at the given path.
var ErrNotFound = errors.New("object not found")

// ErrExists is returned by Put when the target path is already occupied
// and overwriting was not requested.
var ErrExists = errors.New("object already exists")

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType string
	Overwrite   bool
}

// Object describes one entry returned by List. Name is relative to the
// listed prefix.
type Object struct {
	Name string
	Size int64
}

// Store is the blob-store collaborator boundary. Implementations must
// treat paths as opaque hierarchical strings; no path semantics beyond
// prefix matching are expected of them.
type Store interface {
	// Put writes the object and returns its public URL.
	Put(ctx context.Context, path string, r io.Reader, opts PutOptions) (string, error)
	// List returns the objects directly or transitively under prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context, path string) error
	// Move relocates an object, replacing any object at dst.
	Move(ctx context.Context, src, dst string) error
	// Copy duplicates an object, replacing any object at dst.
	Copy(ctx context.Context, src, dst string) error
	// PublicURL returns the URL the object at path is served from.
	PublicURL(path string) string
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}
