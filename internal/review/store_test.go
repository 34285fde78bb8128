package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newReviewStore(t *testing.T, handler http.Handler) (*Store, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return New(gateway.New(srv.URL, 0, staticToken("tok"))), srv.Close
}

func TestListForProduct(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/products/3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "product_id": 3, "rating": 5, "title": "Excelente", "user": {"id": 9, "full_name": "Ana"}},
			{"id": 2, "product_id": 3, "rating": 3, "comment": "Correcto"}
		]`))
	})
	store, stop := newReviewStore(t, mux)
	defer stop()

	reviews, err := store.ListForProduct(context.Background(), 3, 0, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "Ana", reviews[0].User.FullName)
	assert.Len(t, store.Reviews(), 2)
}

func TestStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/products/3/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_reviews": 4, "average_rating": 4.25, "rating_distribution": {"5": 2, "4": 1, "3": 1}}`))
	})
	store, stop := newReviewStore(t, mux)
	defer stop()

	stats, err := store.Stats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalReviews)
	assert.InDelta(t, 4.25, stats.AverageRating, 0.001)
}

func TestMineNotReviewedIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/products/3/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "No has valorado este producto"}`))
	})
	store, stop := newReviewStore(t, mux)
	defer stop()

	review, err := store.Mine(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, review, "a missing own review is an answer, not a failure")
}

func TestCreateDuplicateIsValidationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Ya has valorado este producto"}`))
	})
	store, stop := newReviewStore(t, mux)
	defer stop()

	_, err := store.Create(context.Background(), 3, 4, "", "Rico")
	require.Error(t, err)
	assert.True(t, gateway.IsValidation(err))
	assert.Contains(t, gateway.Detail(err), "Ya has valorado")
}

func TestUpdateAndDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reviews/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"id": 1, "product_id": 3, "rating": 2, "title": "Regular"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	store, stop := newReviewStore(t, mux)
	defer stop()
	ctx := context.Background()

	updated, err := store.Update(ctx, 1, 2, "Regular", "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Rating)

	require.NoError(t, store.Delete(ctx, 1))
}
