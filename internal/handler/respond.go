package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/auth"
	"github.com/timelesslk/storefront/internal/domain/media"
	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
)

// badRequestError marks malformed input detected by the handler itself.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &badRequestError{err: errors.Errorf(format, args...)}
}

// decodeJSON reads the request body and decodes it with fn.
func decodeJSON(r *http.Request, fn func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return badRequest("request body is empty")
	}
	if err := fn(jx.DecodeBytes(data)); err != nil {
		return &badRequestError{err: errors.Wrap(err, "invalid JSON payload")}
	}
	return nil
}

// writeJSON writes status and the document produced by fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"error": msg, "details": ...}. details may be nil.
func writeError(w http.ResponseWriter, status int, msg string, details func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("error")
		e.Str(msg)
		if details != nil {
			e.FieldStart("details")
			details(e)
		}
		e.ObjEnd()
	})
}

func shortfalls(items []order.Shortfall) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ArrStart()
		for _, s := range items {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(s.ProductID)
			e.FieldStart("name")
			e.Str(s.Name)
			e.FieldStart("available")
			e.Int(s.Available)
			e.FieldStart("requested")
			e.Int(s.Requested)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
}

// fail maps err to a status code and writes the error payload. Unexpected
// errors are logged and hidden behind a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stock      *order.InsufficientStockError
		notFound   *order.ProductNotFoundError
		quantity   *order.InvalidQuantityError
		customer   *order.InvalidCustomerError
		validation *product.ValidationError
		bad        *badRequestError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &stock):
		writeError(w, http.StatusConflict, "insufficient stock", shortfalls(stock.Items))
	case errors.Is(err, order.ErrStockContention):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, order.ErrStockContention.Error(), nil)
	case errors.As(err, &notFound):
		writeError(w, http.StatusBadRequest, notFound.Error(), nil)
	case errors.As(err, &quantity):
		writeError(w, http.StatusBadRequest, quantity.Error(), nil)
	case errors.As(err, &customer):
		writeError(w, http.StatusBadRequest, customer.Error(), nil)
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error(), nil)
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
	case errors.As(err, &bad):
		writeError(w, http.StatusBadRequest, bad.Error(), nil)
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, settings.ErrInvalidShippingFee),
		errors.Is(err, media.ErrNotImage):
		writeError(w, http.StatusBadRequest, rootMessage(err), nil)
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, media.ErrTooLarge.Error(), nil)
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, product.ErrNotFound.Error(), nil)
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error(), nil)
	case errors.Is(err, product.ErrVersionConflict):
		writeError(w, http.StatusConflict, "product was modified concurrently, reload and retry", nil)
	case errors.Is(err, media.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, media.ErrNotConfigured.Error(), nil)
	case errors.Is(err, auth.ErrBadCredentials),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, auth.ErrForbidden.Error(), nil)
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// rootMessage returns err's message with any call-site wrapping removed for
// the well-known sentinels.
func rootMessage(err error) string {
	for _, s := range []error{order.ErrEmptyItems, settings.ErrInvalidShippingFee, media.ErrNotImage} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
