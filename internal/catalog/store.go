// Package catalog holds the product and category listing with the
// client-side filter state. Filtering itself happens server-side; the
// store just remembers what the user asked for.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"
)

// Filter is the catalog listing state.
type Filter struct {
	Search     string
	CategoryID int64
	Skip       int
	Limit      int
}

// Store is the catalog state container.
type Store struct {
	gw *gateway.Client

	mu         sync.RWMutex
	filter     Filter
	products   []models.Product
	categories []models.Category
	lastErr    error
}

func New(gw *gateway.Client) *Store {
	return &Store{gw: gw}
}

// SetFilter replaces the listing filter. Changing search or category
// resets pagination.
func (s *Store) SetFilter(filter Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter.Search != s.filter.Search || filter.CategoryID != s.filter.CategoryID {
		filter.Skip = 0
	}
	s.filter = filter
}

// Filter returns the current listing filter.
func (s *Store) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// FetchProducts lists products under the current filter.
func (s *Store) FetchProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogStore.FetchProducts")
	defer span.End()

	filter := s.Filter()
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.CategoryID > 0 {
		query.Set("category_id", strconv.FormatInt(filter.CategoryID, 10))
	}
	if filter.Skip > 0 {
		query.Set("skip", strconv.Itoa(filter.Skip))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var products []models.Product
	if err := s.gw.Get(ctx, "/products/", query, &products); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.products = products
	s.lastErr = nil
	s.mu.Unlock()
	return s.Products(), nil
}

// FetchProduct loads one product by id.
func (s *Store) FetchProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogStore.FetchProduct")
	defer span.End()

	var product models.Product
	if err := s.gw.Get(ctx, fmt.Sprintf("/products/%d", id), nil, &product); err != nil {
		s.setErr(err)
		return nil, err
	}
	return &product, nil
}

// FetchCategories loads the category list.
func (s *Store) FetchCategories(ctx context.Context) ([]models.Category, error) {
	ctx, span := util.StartSpan(ctx, "CatalogStore.FetchCategories")
	defer span.End()

	var categories []models.Category
	if err := s.gw.Get(ctx, "/categories/", nil, &categories); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.categories = categories
	s.lastErr = nil
	s.mu.Unlock()
	return s.Categories(), nil
}

// Products returns the last fetched product list.
func (s *Store) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Categories returns the last fetched category list.
func (s *Store) Categories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// LastError returns the most recent operation failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
