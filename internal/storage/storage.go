// Package storage defines the object store contract used to fetch finished
// audio and clean up the remote copy.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore downloads and deletes objects addressed by bucket and key.
type ObjectStore interface {
	// Download writes the object to localPath, replacing any existing file.
	// A failed download leaves no file behind.
	Download(ctx context.Context, bucket, key, localPath string) error

	// Delete removes the object.
	Delete(ctx context.Context, bucket, key string) error
}
