package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/timelesslk/storefront/internal/domain/settings"
	"github.com/timelesslk/storefront/internal/wire"
)

func (h *Handler) readSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Get(r.Context())
	if err != nil {
		fail(w, r, errors.Wrap(err, "get settings"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSettings(e, s) })
}

func (h *Handler) getShipping(w http.ResponseWriter, r *http.Request) { h.readSettings(w, r) }

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) { h.readSettings(w, r) }

func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var s settings.Settings
	if err := decodeJSON(r, func(d *jx.Decoder) (err error) {
		s, err = wire.DecodeSettings(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.Validate(); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Settings.Put(r.Context(), s); err != nil {
		fail(w, r, errors.Wrap(err, "put settings"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSettings(e, s) })
}
