// Package handler serves the storefront HTTP API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timelesslk/storefront/internal/auth"
	"github.com/timelesslk/storefront/internal/domain/media"
	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
	"github.com/timelesslk/storefront/internal/notify"
	"github.com/timelesslk/storefront/pkg/httpmiddleware"
)

// DefaultJSONLimit caps JSON request bodies.
const DefaultJSONLimit = 10 << 10

// Deps are the services behind the API.
type Deps struct {
	Catalog  *product.Catalog
	Orders   *order.Service
	Settings settings.Repository
	// Images may be nil when image storage is not configured.
	Images media.Store
	Auth   *auth.Authenticator
	Format notify.Formatter
	// WhatsApp is the store's number for the checkout hand-off link.
	WhatsApp string
}

// Handler implements the HTTP endpoints.
type Handler struct {
	Deps
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// Limits holds the rate limit middleware per request class. Nil entries
// disable limiting for that class.
type Limits struct {
	API   httpmiddleware.Middleware
	Order httpmiddleware.Middleware
	Login httpmiddleware.Middleware
	Admin httpmiddleware.Middleware
}

// RouterOptions configures Router.
type RouterOptions struct {
	Limits Limits
	// JSONLimit caps JSON bodies; DefaultJSONLimit when zero.
	JSONLimit int64
	// Uploads serves locally stored images under /uploads when set.
	Uploads http.Handler
}

func optional(m httpmiddleware.Middleware) httpmiddleware.Middleware {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return m
}

// Router mounts every API route on a chi router.
func (h *Handler) Router(opts RouterOptions) chi.Router {
	if opts.JSONLimit <= 0 {
		opts.JSONLimit = DefaultJSONLimit
	}
	jsonBody := httpmiddleware.BodyLimit(opts.JSONLimit)
	// Multipart bodies carry up to MaxBatch images plus form overhead.
	uploadBody := httpmiddleware.BodyLimit(media.MaxBatch*media.MaxImageSize + 1<<20)

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
	if opts.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", opts.Uploads))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(optional(opts.Limits.API))

		r.Group(func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/products", h.listProducts)
			r.Get("/products/{id}", h.getProduct)
			r.Get("/orders/{id}", h.getOrder)
			r.Get("/settings/shipping", h.getShipping)
			r.With(optional(opts.Limits.Order)).Post("/order", h.placeOrder)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(optional(opts.Limits.Login), jsonBody).Post("/login", h.login)

			r.Group(func(r chi.Router) {
				r.Use(optional(opts.Limits.Admin), h.requireAdmin)

				r.With(jsonBody).Get("/products", h.listProducts)
				r.With(jsonBody).Post("/products", h.createProduct)
				r.With(jsonBody).Put("/products/{id}", h.updateProduct)
				r.With(jsonBody).Delete("/products/{id}", h.deleteProduct)
				r.With(jsonBody).Get("/orders", h.listOrders)
				r.With(jsonBody).Patch("/orders/{id}/status", h.updateOrderStatus)
				r.With(jsonBody).Get("/settings", h.getSettings)
				r.With(jsonBody).Put("/settings", h.putSettings)
				r.With(jsonBody).Delete("/image", h.deleteImage)
				r.With(uploadBody).Post("/upload", h.uploadImage)
				r.With(uploadBody).Post("/upload-multiple", h.uploadImages)
			})
		})
	})
	return r
}
