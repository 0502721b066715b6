package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/auth"
	"github.com/timelesslk/storefront/internal/wire"
	"github.com/timelesslk/storefront/pkg/httpmiddleware"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var user, pass string
	if err := decodeJSON(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "user", "username":
				user, err = d.Str()
			case "pass", "password":
				pass, err = d.Str()
			default:
				return d.Skip()
			}
			return wire.FieldErr(key, err)
		})
	}); err != nil {
		fail(w, r, err)
		return
	}

	token, err := h.Auth.Login(user, pass)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			zctx.From(r.Context()).Warn("Admin login rejected", zap.String("client", httpmiddleware.ClientIP(r)))
		}
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(token)
		e.FieldStart("expiresIn")
		e.Int64(int64(h.Auth.TTL().Seconds()))
		e.ObjEnd()
	})
}

// requireAdmin rejects requests without a valid admin bearer token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Auth.Verify(r.Header.Get("Authorization"))
		if err != nil {
			fail(w, r, err)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("admin", claims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
