package objectstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"

	"github.com/timelesslk/storefront/internal/domain/media"
)

var _ media.Store = (*Disk)(nil)

// Disk stores images under a local directory that the HTTP server exposes at
// publicURL.
type Disk struct {
	dir       string
	publicURL string
}

// NewDisk creates dir if needed and returns a Disk store.
func NewDisk(dir, publicURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Disk{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir returns the root directory served for uploads.
func (d *Disk) Dir() string { return d.dir }

// Upload writes the image and returns its public URL.
func (d *Disk) Upload(_ context.Context, u media.Upload) (string, error) {
	if err := u.Check(); err != nil {
		return "", err
	}
	key := objectKey(u.ProductID, u.Filename)
	dst := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", errors.Wrap(err, "create dir")
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", errors.Wrap(err, "create file")
	}
	// One extra byte detects bodies larger than declared.
	n, err := io.Copy(f, io.LimitReader(u.Body, media.MaxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > media.MaxImageSize {
		err = media.ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", errors.Wrapf(err, "write %s", key)
	}
	return d.publicURL + "/" + key, nil
}

// Delete removes the file behind url.
func (d *Disk) Delete(_ context.Context, url string) (bool, error) {
	key, ok := keyFromURL(d.publicURL, url)
	if !ok {
		return false, nil
	}
	err := os.Remove(filepath.Join(d.dir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "delete %s", key)
	}
	return true, nil
}
