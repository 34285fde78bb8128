// Package order holds the user's placed orders and drives checkout,
// cancellation and the admin status flow. Status changes are checked
// against the transition table before the request goes out; the server
// remains the final authority and its rejections surface as ordinary
// validation errors.
package order

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"go.uber.org/zap"
)

// ErrTransitionNotAllowed is returned when a requested status change is
// outside the transition table for the order's current status.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// Store is the order state container for one session.
type Store struct {
	gw     *gateway.Client
	logger *zap.Logger

	mu      sync.RWMutex
	orders  []models.Order
	current *models.Order
	lastErr error
}

func New(gw *gateway.Client) *Store {
	return &Store{
		gw:     gw,
		logger: util.GetLogger(),
	}
}

// CheckoutRequest carries the customer details for creating an order
// from the current cart. The cart contents themselves are never sent;
// the server reads them from the user's cart and empties it.
type CheckoutRequest struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerEmail   string `json:"customer_email" binding:"required,email"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	Notes           string `json:"notes,omitempty"`
}

// ListFilter narrows List. Zero values mean "no filter" and the
// backend's defaults.
type ListFilter struct {
	Status models.OrderStatus
	Limit  int
	Skip   int
}

type statusUpdateRequest struct {
	Status models.OrderStatus `json:"status"`
}

// ReorderResult reports what a reorder managed to put back into the
// cart; stock may have shrunk since the original purchase.
type ReorderResult struct {
	Success                bool            `json:"success"`
	Message                string          `json:"message"`
	AddedItems             []ReorderedItem `json:"added_items"`
	OutOfStockItems        []ReorderedItem `json:"out_of_stock_items"`
	InsufficientStockItems []ReorderedItem `json:"insufficient_stock_items"`
}

// ReorderedItem describes one product touched by a reorder.
type ReorderedItem struct {
	Name              string `json:"name"`
	Quantity          int    `json:"quantity,omitempty"`
	OrderedQuantity   int    `json:"ordered_quantity,omitempty"`
	AvailableQuantity int    `json:"available_quantity,omitempty"`
}

// Create places an order from the current cart. An empty cart or bad
// customer details come back as a validation error.
func (s *Store) Create(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.Create")
	defer span.End()

	var created models.Order
	if err := s.gw.Post(ctx, "/orders/", req, &created); err != nil {
		s.setErr(err)
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", created.ID),
		zap.Float64("total", created.TotalAmount))

	s.mu.Lock()
	s.orders = append([]models.Order{created}, s.orders...)
	s.current = &created
	s.lastErr = nil
	s.mu.Unlock()
	return &created, nil
}

// List fetches the user's orders, most recent first, optionally
// filtered by status. Admin sessions see all orders.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.List")
	defer span.End()

	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Skip > 0 {
		query.Set("skip", strconv.Itoa(filter.Skip))
	}

	var orders []models.Order
	if err := s.gw.Get(ctx, "/orders/", query, &orders); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.orders = orders
	s.lastErr = nil
	s.mu.Unlock()
	return s.Orders(), nil
}

// Get fetches a single order and makes it the currently viewed one.
func (s *Store) Get(ctx context.Context, id int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.Get")
	defer span.End()

	var order models.Order
	if err := s.gw.Get(ctx, fmt.Sprintf("/orders/%d", id), nil, &order); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.current = &order
	s.lastErr = nil
	s.mu.Unlock()
	return &order, nil
}

// Cancel cancels an order. When the order's status is known locally and
// the transition table forbids cancelling, the request is not sent at
// all. The server may still reject an allowed-looking cancel (an admin
// may have shipped it concurrently); that comes back as a validation
// error, not a fatal condition.
func (s *Store) Cancel(ctx context.Context, id int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.Cancel")
	defer span.End()

	if known := s.lookup(id); known != nil && !known.Status.CanCancel() {
		err := fmt.Errorf("order %d is %s: %w", id, known.Status, ErrTransitionNotAllowed)
		s.setErr(err)
		return nil, err
	}

	var order models.Order
	if err := s.gw.Post(ctx, fmt.Sprintf("/orders/%d/cancel", id), nil, &order); err != nil {
		s.setErr(err)
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", id))
	s.absorb(order)
	return &order, nil
}

// UpdateStatus moves an order along the fulfillment table (admin flow).
// The requested status must be in the allowed set for the order's
// current status; the selector UI offers exactly that set.
func (s *Store) UpdateStatus(ctx context.Context, id int64, next models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.UpdateStatus")
	defer span.End()

	if known := s.lookup(id); known != nil && !known.Status.CanTransition(next) {
		err := fmt.Errorf("order %d cannot move from %s to %s: %w",
			id, known.Status, next, ErrTransitionNotAllowed)
		s.setErr(err)
		return nil, err
	}

	var order models.Order
	if err := s.gw.Patch(ctx, fmt.Sprintf("/orders/%d", id), statusUpdateRequest{Status: next}, &order); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", id),
		zap.String("status", string(order.Status)))
	s.absorb(order)
	return &order, nil
}

// Reorder puts a past order's items back into the cart, as far as
// current stock allows.
func (s *Store) Reorder(ctx context.Context, id int64) (*ReorderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderStore.Reorder")
	defer span.End()

	var result ReorderResult
	if err := s.gw.Post(ctx, fmt.Sprintf("/orders/%d/reorder", id), nil, &result); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.logger.Info("Order reordered",
		zap.Int64("order_id", id),
		zap.Int("items_added", len(result.AddedItems)))
	return &result, nil
}

// Orders returns the last fetched order list.
func (s *Store) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Current returns the currently viewed order, or nil.
func (s *Store) Current() *models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	order := *s.current
	return &order
}

// LastError returns the most recent operation failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) lookup(id int64) *models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current != nil && s.current.ID == id {
		order := *s.current
		return &order
	}
	for i := range s.orders {
		if s.orders[i].ID == id {
			order := s.orders[i]
			return &order
		}
	}
	return nil
}

// absorb replaces every local copy of the order with the server's.
func (s *Store) absorb(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == order.ID {
		s.current = &order
	}
	for i := range s.orders {
		if s.orders[i].ID == order.ID {
			s.orders[i] = order
		}
	}
	s.lastErr = nil
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
