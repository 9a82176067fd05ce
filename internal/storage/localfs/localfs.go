// Package localfs implements storage.ObjectStore on a local directory.
// Each bucket is a subdirectory of the root; keys are slash-separated paths
// inside it.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/chaptercast/internal/storage"
)

// URIScheme is the scheme used by URI for objects in a local store.
const URIScheme = "local"

// Store is a directory-backed object store.
type Store struct {
	root string
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// URI returns the output location for an object, in the same
// bucket-first path layout S3 path-style URIs use:
//
//	local:///{bucket}/{key}
func URI(bucket, key string) string {
	u := url.URL{Scheme: URIScheme, Path: "/" + path.Join(bucket, key)}
	return u.String()
}

// Put writes data under bucket/key, creating parent directories.
func (s *Store) Put(bucket, key string, data []byte) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create bucket directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Download copies bucket/key to localPath.
func (s *Store) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}

	src, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to copy object: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to close %s: %w", localPath, err)
	}
	return nil
}

// Delete removes bucket/key.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// objectPath maps bucket/key to a file below root, refusing keys that
// escape the bucket directory.
func (s *Store) objectPath(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean[1:])), nil
}

var _ storage.ObjectStore = (*Store)(nil)
