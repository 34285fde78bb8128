// Package cart holds the user's draft order. Every mutation goes to
// the server and the local copy is replaced wholesale with the server's
// response, so totals and stock checks are always the backend's; the
// store never does its own arithmetic.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"go.uber.org/zap"
)

// Store is the cart state container for one session.
type Store struct {
	gw     *gateway.Client
	logger *zap.Logger

	mu      sync.RWMutex
	cart    models.Cart
	lastErr error
}

func New(gw *gateway.Client) *Store {
	return &Store{
		gw:     gw,
		logger: util.GetLogger(),
	}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// Fetch loads the current cart. A 404 (no cart yet) or 401 (anonymous)
// reads as an empty cart rather than an error, so new visitors need no
// special handling.
func (s *Store) Fetch(ctx context.Context) (models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.Fetch")
	defer span.End()

	var cart models.Cart
	if err := s.gw.Get(ctx, "/carts/me", nil, &cart); err != nil {
		if gateway.IsNotFound(err) || gateway.IsUnauthenticated(err) {
			s.replace(models.Cart{Items: []models.CartItem{}})
			return s.Cart(), nil
		}
		s.setErr(err)
		return s.Cart(), err
	}

	s.replace(cart)
	return s.Cart(), nil
}

// AddItem adds quantity of a product; the server merges it into an
// existing line when one exists and enforces stock bounds.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int) (models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.AddItem")
	defer span.End()

	var cart models.Cart
	req := addItemRequest{ProductID: productID, Quantity: quantity}
	if err := s.gw.Post(ctx, "/carts/me/items", req, &cart); err != nil {
		s.setErr(err)
		return s.Cart(), err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Cart item added",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))
	s.replace(cart)
	return s.Cart(), nil
}

// UpdateItem sets the quantity of a line item.
func (s *Store) UpdateItem(ctx context.Context, productID int64, quantity int) (models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.UpdateItem")
	defer span.End()

	var cart models.Cart
	path := fmt.Sprintf("/carts/me/items/%d", productID)
	if err := s.gw.Put(ctx, path, updateItemRequest{Quantity: quantity}, &cart); err != nil {
		s.setErr(err)
		return s.Cart(), err
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	s.replace(cart)
	return s.Cart(), nil
}

// RemoveItem deletes a line item.
func (s *Store) RemoveItem(ctx context.Context, productID int64) (models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartStore.RemoveItem")
	defer span.End()

	var cart models.Cart
	path := fmt.Sprintf("/carts/me/items/%d", productID)
	if err := s.gw.Delete(ctx, path, &cart); err != nil {
		s.setErr(err)
		return s.Cart(), err
	}

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	s.replace(cart)
	return s.Cart(), nil
}

// Clear empties the cart on the server. Confirmation is the caller's
// concern.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CartStore.Clear")
	defer span.End()

	if err := s.gw.Delete(ctx, "/carts/me", nil); err != nil {
		s.setErr(err)
		return err
	}

	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	s.replace(models.Cart{Items: []models.CartItem{}})
	return nil
}

// Reset zeroes the local copy without a network call. The server empties
// the cart itself when an order is created from it; this just brings
// the local view in line after checkout.
func (s *Store) Reset() {
	s.replace(models.Cart{Items: []models.CartItem{}})
}

// Cart returns the last-known-good cart snapshot.
func (s *Store) Cart() models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart := s.cart
	cart.Items = make([]models.CartItem, len(s.cart.Items))
	copy(cart.Items, s.cart.Items)
	return cart
}

// LastError returns the most recent operation failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) replace(cart models.Cart) {
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	s.mu.Lock()
	s.cart = cart
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
