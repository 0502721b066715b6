package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timelesslk/storefront/internal/auth"
	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
	"github.com/timelesslk/storefront/internal/notify"
	"github.com/timelesslk/storefront/internal/objectstore"
	"github.com/timelesslk/storefront/internal/storage/file"
)

type testServer struct {
	http.Handler
	store *file.Store
	auth  *auth.Authenticator
	dir   string
}

func newTestServer(t *testing.T, withImages bool) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := file.Open(t.TempDir())
	require.NoError(t, err)
	for _, p := range []product.Product{
		{ID: "W1", Name: "Heritage Chrono", Price: decimal.NewFromInt(1000), Discount: decimal.NewFromInt(10), Stock: 5, Version: 1},
		{ID: "W2", Name: "Diver 300", Price: decimal.NewFromInt(500), Stock: 1, Version: 1},
	} {
		require.NoError(t, store.Products().Create(ctx, &p))
	}
	require.NoError(t, store.Settings().Put(ctx, settings.Settings{ShippingFee: decimal.NewFromInt(350)}))

	var seq atomic.Int64
	orders, err := order.NewService(store.Products(), store.Products(), coupon.DefaultRegistry(), store.Orders(),
		order.WithSettings(store.Settings()),
		order.WithReserveBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		order.WithClock(time.Now, func() string { return "ord-" + string(rune('0'+seq.Add(1))) }),
	)
	require.NoError(t, err)

	a, err := auth.New(auth.Config{User: "admin", Pass: "s3cret", Secret: "test-secret"})
	require.NoError(t, err)

	deps := Deps{
		Orders:   orders,
		Settings: store.Settings(),
		Auth:     a,
		Format:   notify.Formatter{Currency: "Rs."},
		WhatsApp: "+94 77 000 0000",
	}
	opts := RouterOptions{}
	dir := ""
	if withImages {
		dir = t.TempDir()
		disk, err := objectstore.NewDisk(dir, "http://shop.test/uploads")
		require.NoError(t, err)
		deps.Images = disk
		opts.Uploads = http.FileServer(http.Dir(disk.Dir()))
	}
	deps.Catalog = product.NewCatalog(store.Products(), deps.Images)

	return &testServer{Handler: New(deps).Router(opts), store: store, auth: a, dir: dir}
}

func (s *testServer) do(t *testing.T, method, path, body string, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	token, err := s.auth.Issue("admin")
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

const customerJSON = `"customer":{"name":"Nimal","address":"12 Galle Rd","contact":"0771234567"}`

func TestPlaceOrder(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/order", `{`+customerJSON+`,"items":[{"id":"W1","qty":2}],"coupon":{"code":"tenoff"}}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "ord-1", body["orderId"])
	assert.Equal(t, 1620.0, body["grandTotal"])
	assert.Equal(t, 1970.0, body["amountDue"])
	assert.True(t, strings.HasPrefix(body["whatsappUrl"].(string), "https://wa.me/94770000000?text="))

	p, err := s.store.Products().GetByID(context.Background(), "W1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	w = s.do(t, http.MethodGet, "/api/orders/ord-1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	o := decodeBody(t, w)
	assert.Equal(t, "pending", o["status"])
	assert.Equal(t, "Cash on Delivery", o["payment"])
	assert.Equal(t, 350.0, o["shippingFee"])
}

func TestPlaceOrder_Totals(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		status     int
		grandTotal float64
		want       string
	}{
		{
			name:       "discounted price",
			body:       `{` + customerJSON + `,"items":[{"id":"W1","qty":2}]}`,
			status:     http.StatusOK,
			grandTotal: 1800,
		},
		{
			name:       "coupon code string",
			body:       `{` + customerJSON + `,"items":[{"id":"W1","qty":2}],"coupon":"TENOFF"}`,
			status:     http.StatusOK,
			grandTotal: 1620,
		},
		{
			name:       "unknown coupon ignored",
			body:       `{` + customerJSON + `,"items":[{"id":"W1","qty":2}],"coupon":{"code":"NOPE"}}`,
			status:     http.StatusOK,
			grandTotal: 1800,
		},
		{
			name:   "shortfall",
			body:   `{` + customerJSON + `,"items":[{"id":"W1","qty":6}]}`,
			status: http.StatusConflict,
			want:   `{"error":"insufficient stock","details":[{"id":"W1","name":"Heritage Chrono","available":5,"requested":6}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			w := s.do(t, http.MethodPost, "/api/order", tt.body, "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.want != "" {
				assert.JSONEq(t, tt.want, w.Body.String())
				return
			}
			body := decodeBody(t, w)
			assert.Equal(t, tt.grandTotal, body["grandTotal"])
			assert.Equal(t, tt.grandTotal+350, body["amountDue"])
		})
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "insufficient stock",
			body:   `{` + customerJSON + `,"items":[{"id":"W1","qty":10},{"id":"W2","qty":1}]}`,
			status: http.StatusConflict,
			want:   `{"error":"insufficient stock","details":[{"id":"W1","name":"Heritage Chrono","available":5,"requested":10}]}`,
		},
		{
			name:   "unknown product",
			body:   `{` + customerJSON + `,"items":[{"id":"W9","qty":1}]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"product W9 not found"}`,
		},
		{
			name:   "zero quantity",
			body:   `{` + customerJSON + `,"items":[{"id":"W1","qty":0}]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"quantity must be greater than 0 for product W1"}`,
		},
		{
			name:   "no items",
			body:   `{` + customerJSON + `,"items":[]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"items required"}`,
		},
		{
			name:   "missing address",
			body:   `{"customer":{"name":"Nimal"},"items":[{"id":"W1","qty":1}]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"customer address is required"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, false)
			w := s.do(t, http.MethodPost, "/api/order", tt.body, "")
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())

			p, err := s.store.Products().GetByID(context.Background(), "W1")
			require.NoError(t, err)
			assert.Equal(t, 5, p.Stock)
		})
	}
}

type failingOrders struct {
	order.Repository
}

func (failingOrders) Create(context.Context, *order.Order) error {
	return errors.New("disk full")
}

func TestPlaceOrder_PersistFailure(t *testing.T) {
	s := newTestServer(t, false)
	orders, err := order.NewService(s.store.Products(), s.store.Products(), coupon.DefaultRegistry(),
		failingOrders{Repository: s.store.Orders()},
		order.WithReserveBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	require.NoError(t, err)
	h := New(Deps{
		Catalog:  product.NewCatalog(s.store.Products(), nil),
		Orders:   orders,
		Settings: s.store.Settings(),
		Auth:     s.auth,
		Format:   notify.Formatter{Currency: "Rs."},
	}).Router(RouterOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{`+customerJSON+`,"items":[{"id":"W1","qty":2}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	p, err := s.store.Products().GetByID(context.Background(), "W1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/order", `{"items":[`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "invalid JSON payload")

	w = s.do(t, http.MethodPost, "/api/order", `{"pad":"`+strings.Repeat("x", DefaultJSONLimit)+`"}`, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestProducts_Public(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)

	w = s.do(t, http.MethodGet, "/api/products/W1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 900.0, decodeBody(t, w)["finalPrice"])

	w = s.do(t, http.MethodGet, "/api/products/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/orders/nope", "", "").Code)
	assert.JSONEq(t, `{"shippingFee":350}`, s.do(t, http.MethodGet, "/api/settings/shipping", "", "").Body.String())
}

func TestAdmin_Auth(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/admin/login", `{"user":"admin","pass":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/login", `{"user":"admin","pass":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, 43200.0, body["expiresIn"])

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/admin/orders", "", token).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/orders", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/admin/orders", "", "garbage").Code)
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t)

	w := s.do(t, http.MethodPost, "/api/admin/products", `{"name":"Speedmaster","brand":"Omega","price":"6400","discount":5,"stock":2}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 6080.0, created["finalPrice"])

	w = s.do(t, http.MethodPut, "/api/admin/products/"+id, `{"stock":7}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 7.0, decodeBody(t, w)["stock"])

	w = s.do(t, http.MethodPut, "/api/admin/products/"+id, `{"images":["https://cdn.example/a.jpg"]}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"https://cdn.example/a.jpg"}, decodeBody(t, w)["images"])
	w = s.do(t, http.MethodPut, "/api/admin/products/"+id, `{"images":[]}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{}, decodeBody(t, w)["images"])

	w = s.do(t, http.MethodPut, "/api/admin/products/"+id, `{"discount":150}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/products", `{"price":1}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/admin/products/"+id, "", token).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/admin/products/"+id, "", token).Code)
}

func TestAdmin_OrdersAndSettings(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/order", `{`+customerJSON+`,"items":[{"id":"W2","qty":1}]}`, "").Code)

	w := s.do(t, http.MethodPatch, "/api/admin/orders/ord-1/status", `{"status":"Shipped"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shipped", decodeBody(t, w)["status"])

	w = s.do(t, http.MethodPatch, "/api/admin/orders/ord-1/status", `{"status":"lost"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPatch, "/api/admin/orders/ord-9/status", `{"status":"shipped"}`, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/orders", "", token)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodPut, "/api/admin/settings", `{"shippingFee":-1}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPut, "/api/admin/settings", `{"shippingFee":"400.50"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"shippingFee":400.5}`, s.do(t, http.MethodGet, "/api/admin/settings", "", token).Body.String())
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, contentType := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake image " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("productId", "W1"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, path, field string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, files)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.token(t))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestAdmin_Images(t *testing.T) {
	s := newTestServer(t, true)
	token := s.token(t)

	w := s.upload(t, "/api/admin/upload", "image", map[string]string{"face.JPG": "image/jpeg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	url := decodeBody(t, w)["url"].(string)
	require.True(t, strings.HasPrefix(url, "http://shop.test/uploads/products/W1/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	served := s.do(t, http.MethodGet, strings.TrimPrefix(url, "http://shop.test"), "", "")
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, "fake image face.JPG", served.Body.String())

	w = s.upload(t, "/api/admin/upload", "image", map[string]string{"notes.txt": "text/plain"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, "/api/admin/upload-multiple", "images", map[string]string{"a.png": "image/png", "b.png": "image/png"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decodeBody(t, w)["urls"], 2)

	six := map[string]string{}
	for _, n := range []string{"1", "2", "3", "4", "5", "6"} {
		six[n+".png"] = "image/png"
	}
	w = s.upload(t, "/api/admin/upload-multiple", "images", six)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/admin/image", `{"url":"`+url+`"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err := os.Stat(filepath.Join(s.dir, strings.TrimPrefix(url, "http://shop.test/uploads/")))
	assert.True(t, os.IsNotExist(err))

	w = s.do(t, http.MethodDelete, "/api/admin/image", `{"url":"https://elsewhere/x.jpg"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_ImagesNotConfigured(t *testing.T) {
	s := newTestServer(t, false)
	w := s.upload(t, "/api/admin/upload", "image", map[string]string{"a.png": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/api/nothing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}
