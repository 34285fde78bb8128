// Package wishlist holds the user's saved products.
package wishlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"
)

// Store is the wishlist state container.
type Store struct {
	gw *gateway.Client

	mu      sync.RWMutex
	items   []models.WishlistItem
	lastErr error
}

func New(gw *gateway.Client) *Store {
	return &Store{gw: gw}
}

type addRequest struct {
	ProductID int64 `json:"product_id"`
}

type bulkAddRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

// Fetch loads the wishlist. Anonymous sessions read as empty.
func (s *Store) Fetch(ctx context.Context) ([]models.WishlistItem, error) {
	ctx, span := util.StartSpan(ctx, "WishlistStore.Fetch")
	defer span.End()

	var items []models.WishlistItem
	if err := s.gw.Get(ctx, "/wishlist/me", nil, &items); err != nil {
		if gateway.IsUnauthenticated(err) {
			s.replace(nil)
			return s.Items(), nil
		}
		s.setErr(err)
		return nil, err
	}

	s.replace(items)
	return s.Items(), nil
}

// Add saves a product.
func (s *Store) Add(ctx context.Context, productID int64) (*models.WishlistItem, error) {
	ctx, span := util.StartSpan(ctx, "WishlistStore.Add")
	defer span.End()

	var item models.WishlistItem
	if err := s.gw.Post(ctx, "/wishlist/me", addRequest{ProductID: productID}, &item); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	s.lastErr = nil
	s.mu.Unlock()
	return &item, nil
}

// AddBulk saves several products at once and refreshes the list.
func (s *Store) AddBulk(ctx context.Context, productIDs []int64) error {
	ctx, span := util.StartSpan(ctx, "WishlistStore.AddBulk")
	defer span.End()

	if err := s.gw.Post(ctx, "/wishlist/me/bulk", bulkAddRequest{ProductIDs: productIDs}, nil); err != nil {
		s.setErr(err)
		return err
	}

	_, err := s.Fetch(ctx)
	return err
}

// Remove deletes a saved product.
func (s *Store) Remove(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "WishlistStore.Remove")
	defer span.End()

	if err := s.gw.Delete(ctx, fmt.Sprintf("/wishlist/me/%d", productID), nil); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Clear removes every saved product.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "WishlistStore.Clear")
	defer span.End()

	if err := s.gw.Delete(ctx, "/wishlist/me", nil); err != nil {
		s.setErr(err)
		return err
	}

	s.replace(nil)
	return nil
}

// Contains reports whether a product is in the local wishlist copy.
func (s *Store) Contains(productID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// Items returns the last fetched wishlist.
func (s *Store) Items() []models.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WishlistItem, len(s.items))
	copy(out, s.items)
	return out
}

// LastError returns the most recent operation failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) replace(items []models.WishlistItem) {
	if items == nil {
		items = []models.WishlistItem{}
	}
	s.mu.Lock()
	s.items = items
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
