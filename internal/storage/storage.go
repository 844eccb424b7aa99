// Package storage keeps chantier photos in an object bucket and hands out
// short-lived signed download URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

var (
	// ErrNotFound is returned when no object exists under a key.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for keys that escape the bucket root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Bucket is the object store used for uploads.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// Extension returns the file extension for an accepted image type.
func Extension(contentType string) (string, bool) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ext, ok
}

// PhotoKey builds the object key {tenant}/{chantier}/{photo}.{ext}.
func PhotoKey(tenantID, chantierID uint, id uuid.UUID, ext string) string {
	return fmt.Sprintf("%d/%d/%s.%s", tenantID, chantierID, id, ext)
}

// TenantOf returns the tenant prefix of a photo key.
func TenantOf(key string) (string, bool) {
	tenant, _, ok := strings.Cut(key, "/")
	return tenant, ok && tenant != ""
}

// BlobBucket adapts a gocloud.dev bucket to Bucket.
type BlobBucket struct {
	b *blob.Bucket
}

// NewBlobBucket wraps an opened bucket, such as one from blob.OpenBucket
// or memblob in tests.
func NewBlobBucket(b *blob.Bucket) *BlobBucket {
	return &BlobBucket{b: b}
}

// OpenDir opens a bucket stored as files below dir, creating dir if needed.
func OpenDir(dir string) (*BlobBucket, error) {
	b, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open bucket dir: %w", err)
	}
	return NewBlobBucket(b), nil
}

func checkKey(key string) error {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || clean[1:] != key {
		return ErrInvalidKey
	}
	return nil
}

// Put writes the object and returns its size. The object only becomes
// visible once fully written.
func (b *BlobBucket) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := b.b.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, r)
	if err != nil {
		// Canceling before Close discards the partial object.
		cancel()
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

// Open returns a reader over the object.
func (b *BlobBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	rc, err := b.b.NewReader(ctx, key, nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, ErrNotFound
	}
	return rc, err
}

// Delete removes the object. Deleting a missing object is not an error.
func (b *BlobBucket) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := b.b.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

// Close releases the underlying bucket.
func (b *BlobBucket) Close() error {
	return b.b.Close()
}
