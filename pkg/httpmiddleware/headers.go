package httpmiddleware

import "net/http"

// SecurityHeaders sets conservative browser security headers on every
// response. The API serves JSON and uploaded images only.
func SecurityHeaders() Middleware {
	headers := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Cross-Origin-Opener-Policy", "same-origin"},
		{"Cross-Origin-Resource-Policy", "cross-origin"},
		{"Strict-Transport-Security", "max-age=15552000; includeSubDomains"},
		{"Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'"},
		{"X-DNS-Prefetch-Control", "off"},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}
