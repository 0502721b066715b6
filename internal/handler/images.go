package handler

import (
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timelesslk/storefront/internal/domain/media"
	"github.com/timelesslk/storefront/internal/wire"
)

const multipartMemory = 8 << 20

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (media.Store, bool) {
	if h.Images == nil {
		fail(w, r, media.ErrNotConfigured)
		return nil, false
	}
	return h.Images, true
}

// upload checks and stores one multipart file.
func (h *Handler) upload(r *http.Request, productID string, fh *multipart.FileHeader) (string, error) {
	u := media.Upload{
		ProductID:   productID,
		Filename:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	if err := u.Check(); err != nil {
		return "", errors.Wrap(err, fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer func() { _ = f.Close() }()
	u.Body = f

	url, err := h.Images.Upload(r.Context(), u)
	if err != nil {
		return "", errors.Wrap(err, "store image")
	}
	return url, nil
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.store(w, r); !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		fail(w, r, &badRequestError{err: errors.Wrap(err, "parse form")})
		return
	}
	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		fail(w, r, badRequest("exactly one file in field %q is required", "image"))
		return
	}

	url, err := h.upload(r, r.FormValue("productId"), files[0])
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("url")
		e.Str(url)
		e.ObjEnd()
	})
}

func (h *Handler) uploadImages(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		fail(w, r, &badRequestError{err: errors.Wrap(err, "parse form")})
		return
	}
	files := r.MultipartForm.File["images"]
	switch {
	case len(files) == 0:
		fail(w, r, badRequest("no files in field %q", "images"))
		return
	case len(files) > media.MaxBatch:
		fail(w, r, badRequest("at most %d images per upload", media.MaxBatch))
		return
	}
	for _, fh := range files {
		if err := (media.Upload{ContentType: fh.Header.Get("Content-Type"), Size: fh.Size}).Check(); err != nil {
			fail(w, r, errors.Wrap(err, fh.Filename))
			return
		}
	}

	productID := r.FormValue("productId")
	urls := make([]string, len(files))
	g := new(errgroup.Group)
	for i, fh := range files {
		g.Go(func() error {
			url, err := h.upload(r, productID, fh)
			urls[i] = url
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// A failed batch leaves nothing stored.
		for _, url := range urls {
			if url == "" {
				continue
			}
			if _, derr := store.Delete(r.Context(), url); derr != nil {
				zctx.From(r.Context()).Warn("Failed to remove partial upload", zap.String("url", url), zap.Error(derr))
			}
		}
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("urls")
		e.ArrStart()
		for _, url := range urls {
			e.Str(url)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func (h *Handler) deleteImage(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var url string
	if err := decodeJSON(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "url" {
				return d.Skip()
			}
			s, err := d.Str()
			url = s
			return wire.FieldErr(key, err)
		})
	}); err != nil {
		fail(w, r, err)
		return
	}
	if url == "" {
		fail(w, r, badRequest("url is required"))
		return
	}

	deleted, err := store.Delete(r.Context(), url)
	if err != nil {
		fail(w, r, errors.Wrap(err, "delete image"))
		return
	}
	if !deleted {
		fail(w, r, badRequest("image is not managed by this store"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("ok")
		e.Bool(true)
		e.ObjEnd()
	})
}
