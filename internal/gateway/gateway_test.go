package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, staticToken("tok-123"))
	err := c.Get(context.Background(), "/auth/me", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestOmitsAuthorizationWhenAnonymous(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, staticToken(""))
	err := c.Get(context.Background(), "/products/", nil, nil)
	require.NoError(t, err)
	assert.False(t, sawHeader)
}

func TestSetsRequestID(t *testing.T) {
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, staticToken(""))
	require.NoError(t, c.Get(context.Background(), "/products/", nil, nil))
	assert.NotEmpty(t, requestID)
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		status   int
		category Category
	}{
		{http.StatusBadRequest, CategoryValidation},
		{http.StatusUnauthorized, CategoryUnauthenticated},
		{http.StatusForbidden, CategoryValidation},
		{http.StatusNotFound, CategoryNotFound},
		{http.StatusConflict, CategoryValidation},
		{http.StatusInternalServerError, CategoryServer},
		{http.StatusBadGateway, CategoryServer},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"detail": "nope"}`))
		}))

		c := New(srv.URL, 0, staticToken(""))
		err := c.Get(context.Background(), "/x", nil, nil)
		srv.Close()

		require.Error(t, err)
		var ge *Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, tt.status, ge.Status)
		assert.Equal(t, tt.category, ge.Category)
		assert.Equal(t, "nope", ge.Detail)
	}
}

func TestStructuredDetailFallsBack(t *testing.T) {
	// FastAPI validation errors send a list under "detail"; the client
	// falls back to a generic message rather than dumping it raw.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": [{"loc": ["body", "email"], "msg": "field required"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, staticToken(""))
	err := c.Post(context.Background(), "/auth/register", map[string]string{}, nil)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, CategoryValidation, ge.Category)
	assert.NotEmpty(t, ge.Detail)
	assert.NotContains(t, ge.Detail, "loc")
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond, staticToken(""))
	err := c.Get(context.Background(), "/slow", nil, nil)

	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Zero(t, ge.Status)
}

func TestUnreachableHostIsNetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1", 500*time.Millisecond, staticToken(""))
	err := c.Get(context.Background(), "/x", nil, nil)
	assert.True(t, IsNetwork(err))
}

func TestDecodesResponseAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		w.Write([]byte(`{"id": 7, "name": "gochujang"}`))
	}))
	defer srv.Close()

	var out struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	c := New(srv.URL, 0, staticToken(""))
	query := url.Values{"status": {"pending"}}
	require.NoError(t, c.Get(context.Background(), "/orders/", query, &out))
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "gochujang", out.Name)
}

func TestCategoryHelpers(t *testing.T) {
	assert.True(t, IsValidation(&Error{Status: 400, Category: CategoryValidation}))
	assert.True(t, IsUnauthenticated(&Error{Status: 401, Category: CategoryUnauthenticated}))
	assert.True(t, IsNotFound(&Error{Status: 404, Category: CategoryNotFound}))
	assert.True(t, IsServer(&Error{Status: 500, Category: CategoryServer}))
	assert.False(t, IsNotFound(assert.AnError))
}
