//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

// Response types are local so the suite only sees the HTTP surface.

type productResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type placeOrderResponse struct {
	OK          bool    `json:"ok"`
	OrderID     string  `json:"orderId"`
	GrandTotal  float64 `json:"grandTotal"`
	ShippingFee float64 `json:"shippingFee"`
	AmountDue   float64 `json:"amountDue"`
	WhatsAppURL string  `json:"whatsappUrl"`
}

type orderResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	GrandTotal float64 `json:"grandTotal"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details []json.RawMessage `json:"details"`
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider  { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider   { return metricnoop.NewMeterProvider() }
func (noopTelemetry) TextMapPropagator() propagation.TextMapPropagator {
	return propagation.TraceContext{}
}

type client struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startServer(t *testing.T) *client {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("timeless"),
		tcpostgres.WithUsername("timeless"),
		tcpostgres.WithPassword("timeless"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %s", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	addr := freeAddr(t)
	cfg := &Config{
		Addr:      addr,
		PublicURL: "http://" + addr,
		Currency:  "Rs.",
		WhatsApp:  "94770000000",
		Storage:   StorageConfig{Backend: BackendPostgres, DatabaseURL: dsn, MaxConns: 10},
		Images:    ImagesConfig{Backend: ImagesDisk, Dir: t.TempDir()},
		Admin:     AdminConfig{User: "admin", Pass: "s3cret", JWTSecret: "integration", TokenTTL: time.Hour},
		Orders:    OrdersConfig{ReserveAttempts: 3, JSONLimit: 10 << 10},
		Notify: NotifyConfig{
			QueueSize: 16, Workers: 1, Attempts: 1,
			Timeout: time.Second, DrainTimeout: time.Second, Log: true,
		},
		RateLimit: RateLimitConfig{
			APIMax: 1000, APIWindow: time.Minute,
			OrderMax: 1000, OrderWindow: time.Minute,
			LoginMax: 3, LoginWindow: time.Minute,
			AdminMax: 1000, AdminWindow: time.Minute,
		},
		CORS:     CORSConfig{Origins: []string{"*"}},
		Graceful: GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}
	require.NoError(t, cfg.Validate())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- Run(runCtx, zaptest.NewLogger(t), noopTelemetry{}, cfg) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	c := &client{t: t, base: "http://" + addr, http: &http.Client{Timeout: 10 * time.Second}}
	require.Eventually(t, func() bool {
		resp, err := c.http.Get(c.base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 200*time.Millisecond)
	return c
}

func TestStorefront(t *testing.T) {
	c := startServer(t)

	t.Run("AdminRequiresToken", func(t *testing.T) {
		resp := c.do(http.MethodGet, "/api/admin/orders", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("LoginRejectsWrongPassword", func(t *testing.T) {
		resp := c.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	resp := c.do(http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c.token = decode[struct {
		Token string `json:"token"`
	}](t, resp).Token
	require.NotEmpty(t, c.token)

	resp = c.do(http.MethodPut, "/api/admin/settings", map[string]any{"shippingFee": 500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/admin/products", map[string]any{
		"id":       "prx-80",
		"name":     "PRX Powermatic 80",
		"brand":    "Tissot",
		"price":    1000,
		"discount": 10,
		"stock":    2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := c.token
	c.token = ""

	t.Run("ListProducts", func(t *testing.T) {
		resp := c.do(http.MethodGet, "/api/products", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		products := decode[[]productResponse](t, resp)
		require.Len(t, products, 1)
		assert.Equal(t, "prx-80", products[0].ID)
		assert.Equal(t, 2, products[0].Stock)
	})

	t.Run("PublicShippingFee", func(t *testing.T) {
		resp := c.do(http.MethodGet, "/api/settings/shipping", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 500.0, decode[struct {
			ShippingFee float64 `json:"shippingFee"`
		}](t, resp).ShippingFee)
	})

	customer := map[string]string{"name": "Nimal Perera", "address": "12 Galle Road, Colombo"}

	t.Run("RejectsInvalidQuantity", func(t *testing.T) {
		resp := c.do(http.MethodPost, "/api/order", map[string]any{
			"customer": customer,
			"items":    []map[string]any{{"id": "prx-80", "qty": 0}},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	var orderID string
	t.Run("PlaceOrder", func(t *testing.T) {
		resp := c.do(http.MethodPost, "/api/order", map[string]any{
			"customer": customer,
			"items":    []map[string]any{{"id": "prx-80", "qty": 2}},
			"coupon":   "TENOFF",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		placed := decode[placeOrderResponse](t, resp)
		assert.True(t, placed.OK)
		// 2 x 900, less 10%.
		assert.Equal(t, 1620.0, placed.GrandTotal)
		assert.Equal(t, 500.0, placed.ShippingFee)
		assert.Equal(t, 2120.0, placed.AmountDue)
		assert.Contains(t, placed.WhatsAppURL, "https://wa.me/94770000000")
		orderID = placed.OrderID
	})
	require.NotEmpty(t, orderID)

	t.Run("StockDecremented", func(t *testing.T) {
		resp := c.do(http.MethodGet, "/api/products/prx-80", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, decode[productResponse](t, resp).Stock)
	})

	t.Run("InsufficientStock", func(t *testing.T) {
		resp := c.do(http.MethodPost, "/api/order", map[string]any{
			"customer": customer,
			"items":    []map[string]any{{"id": "prx-80", "qty": 1}},
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		e := decode[errorResponse](t, resp)
		assert.Equal(t, "insufficient stock", e.Error)
		assert.Len(t, e.Details, 1)
	})

	t.Run("GetOrder", func(t *testing.T) {
		resp := c.do(http.MethodGet, "/api/orders/"+orderID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		o := decode[orderResponse](t, resp)
		assert.Equal(t, orderID, o.ID)
		assert.Equal(t, "pending", o.Status)
	})

	c.token = token

	t.Run("AdminUpdatesStatus", func(t *testing.T) {
		resp := c.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "Shipped"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "shipped", decode[orderResponse](t, resp).Status)

		resp = c.do(http.MethodGet, "/api/admin/orders", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decode[[]orderResponse](t, resp), 1)
	})

	t.Run("DeleteProduct", func(t *testing.T) {
		resp := c.do(http.MethodDelete, "/api/admin/products/prx-80", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = c.do(http.MethodGet, "/api/products/prx-80", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
