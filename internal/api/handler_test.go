package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	customerToken = "tok-customer"
	adminToken    = "tok-admin"
)

// fakeBackend is a minimal stand-in for the commerce API: two known
// accounts, a cart per token and a few fixed orders.
type fakeBackend struct {
	mu     sync.Mutex
	carts  map[string][]models.CartItem
	orders map[int64]*models.Order
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		carts: map[string][]models.CartItem{},
		orders: map[int64]*models.Order{
			5: {ID: 5, Status: models.OrderStatusShipped},
			6: {ID: 6, Status: models.OrderStatusPending},
		},
	}
}

func (f *fakeBackend) token(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (f *fakeBackend) writeCart(w http.ResponseWriter, token string) {
	items := f.carts[token]
	if items == nil {
		items = []models.CartItem{}
	}
	cart := models.Cart{ID: 1, Items: items}
	for _, item := range items {
		cart.TotalItems += item.Quantity
		cart.TotalAmount += item.Subtotal
	}
	_ = json.NewEncoder(w).Encode(cart)
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		token := f.token(r)
		path := strings.TrimSuffix(r.URL.Path, "/")

		switch {
		case r.Method == http.MethodPost && path == "/auth/login":
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			switch req.Email {
			case "admin@example.com":
				_, _ = w.Write([]byte(`{"access_token": "` + adminToken + `", "token_type": "bearer"}`))
			case "ana@example.com":
				_, _ = w.Write([]byte(`{"access_token": "` + customerToken + `", "token_type": "bearer"}`))
			default:
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Incorrect email or password"}`))
			}

		case r.Method == http.MethodGet && path == "/auth/me":
			switch token {
			case adminToken:
				_, _ = w.Write([]byte(`{"id": 1, "email": "admin@example.com", "full_name": "Admin", "role": "admin", "is_active": true}`))
			case customerToken:
				_, _ = w.Write([]byte(`{"id": 2, "email": "ana@example.com", "full_name": "Ana", "role": "customer", "is_active": true}`))
			default:
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Not authenticated"}`))
			}

		case path == "/carts/me" && r.Method == http.MethodGet:
			if token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Not authenticated"}`))
				return
			}
			f.writeCart(w, token)

		case path == "/carts/me/items" && r.Method == http.MethodPost:
			if token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail": "Not authenticated"}`))
				return
			}
			var req struct {
				ProductID int64 `json:"product_id"`
				Quantity  int   `json:"quantity"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.carts[token] = append(f.carts[token], models.CartItem{
				ProductID: req.ProductID,
				Quantity:  req.Quantity,
				Subtotal:  3.50 * float64(req.Quantity),
			})
			f.writeCart(w, token)

		case strings.HasPrefix(path, "/orders/") && r.Method == http.MethodGet:
			id, _ := strconv.ParseInt(strings.TrimPrefix(path, "/orders/"), 10, 64)
			order, ok := f.orders[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"detail": "Pedido no encontrado"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(order)

		case path == "/orders" && r.Method == http.MethodGet:
			out := []models.Order{}
			for _, order := range f.orders {
				out = append(out, *order)
			}
			_ = json.NewEncoder(w).Encode(out)

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Not Found"}`))
		}
	})
}

// client drives the BFF surface keeping the session cookie between
// requests, the way a browser would.
type client struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newClient(t *testing.T, router *gin.Engine) *client {
	return &client{t: t, router: router}
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "storefront_session" {
			c.cookie = cookie
		}
	}
	return w
}

func newTestRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())

	registry := NewRegistry(srv.URL, 2*time.Second, func(string) session.Storage {
		return session.NewMemoryStorage()
	})
	router := gin.New()
	NewHandler(registry).SetupRoutes(router)
	return router, srv.Close
}

func TestHealthAndReady(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/ready", "").Code)
}

func TestSessionCookieIsAssigned(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/api/v1/auth/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, c.cookie, "first visit must set the session cookie")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["authenticated"])
}

func TestForgedSessionCookieIsReplaced(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	// File-backed factory, wired the same way main.go does it. The
	// cookie value becomes a filename, so a path in it must never be
	// honored.
	base := t.TempDir()
	dir := filepath.Join(base, "sessions")
	registry := NewRegistry(srv.URL, 2*time.Second, func(id string) session.Storage {
		return session.NewFileStorage(filepath.Join(dir, id+".json"))
	})
	router := gin.New()
	NewHandler(registry).SetupRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email": "ana@example.com", "password": "secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: "../../escaped"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var minted string
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "storefront_session" {
			minted = cookie.Value
		}
	}
	require.NotEmpty(t, minted, "a forged cookie must be replaced")
	_, err := uuid.Parse(minted)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(base, "escaped.json"))
	assert.True(t, os.IsNotExist(err), "session file escaped the sessions dir")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		_, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		assert.NoError(t, err, "unexpected session file %s", entry.Name())
	}
}

func TestAnonymousCartIsEmpty(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cart models.Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	assert.True(t, cart.IsEmpty())
}

func TestLoginThenCartFlow(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/api/v1/auth/login",
		`{"email": "ana@example.com", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodPost, "/api/v1/cart/items", `{"product_id": 7, "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cart models.Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.TotalItems)
	assert.InDelta(t, 7.0, cart.TotalAmount, 0.001)

	w = c.do(http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	assert.Equal(t, 2, cart.TotalItems)
}

func TestLogoutEndsTheSession(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/api/v1/auth/login",
		`{"email": "ana@example.com", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPost, "/api/v1/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)

	// Same cookie, fresh stores: the check must read anonymous.
	w = c.do(http.MethodGet, "/api/v1/auth/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["authenticated"])
}

func TestBadLoginIsUnauthorized(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/api/v1/auth/login",
		`{"email": "nobody@example.com", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/api/v1/auth/login",
		`{"email": "ana@example.com", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/v1/admin/orders", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutesAdmitAdmins(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodPost, "/api/v1/auth/login",
		`{"email": "admin@example.com", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/api/v1/admin/orders", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOrderTransitionsForShippedOrder(t *testing.T) {
	router, stop := newTestRouter(t)
	defer stop()
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/api/v1/orders/5/transitions", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Status      models.OrderStatus   `json:"status"`
		Allowed     []models.OrderStatus `json:"allowed"`
		Cancellable bool                 `json:"cancellable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.OrderStatusShipped, body.Status)
	assert.Equal(t, []models.OrderStatus{models.OrderStatusDelivered}, body.Allowed)
	assert.False(t, body.Cancellable)
}

func TestUnreachableUpstreamReadsAsBadGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := NewRegistry("http://127.0.0.1:1", 500*time.Millisecond, func(string) session.Storage {
		return session.NewMemoryStorage()
	})
	router := gin.New()
	NewHandler(registry).SetupRoutes(router)
	c := newClient(t, router)

	w := c.do(http.MethodGet, "/api/v1/products", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
