// Package media defines product image storage.
package media

import (
	"context"
	"io"
	"strings"

	"github.com/go-faster/errors"
)

const (
	// MaxImageSize is the largest accepted upload, in bytes.
	MaxImageSize = 5 << 20
	// MaxBatch is the most images accepted by one multi-upload.
	MaxBatch = 5
)

var (
	// ErrNotImage is returned for uploads whose content type is not image/*.
	ErrNotImage = errors.New("only image files are allowed")
	// ErrTooLarge is returned for uploads over MaxImageSize.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrNotConfigured is returned when no object store is configured.
	ErrNotConfigured = errors.New("image storage not configured")
)

// Upload describes one image to store.
type Upload struct {
	ProductID   string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Check validates content type and size before anything is written.
func (u Upload) Check() error {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return ErrNotImage
	}
	if u.Size > MaxImageSize {
		return ErrTooLarge
	}
	return nil
}

// Store persists product images and returns their public URLs.
type Store interface {
	Upload(ctx context.Context, u Upload) (string, error)
	// Delete removes the object behind url. It reports false when url does
	// not belong to this store.
	Delete(ctx context.Context, url string) (bool, error)
}
