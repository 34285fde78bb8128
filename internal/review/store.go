// Package review covers product reviews: the public listing and stats
// plus the authenticated user's own create/update/delete flow.
package review

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

// Store is the review state container.
type Store struct {
	gw *gateway.Client

	mu      sync.RWMutex
	reviews []models.Review
	lastErr error
}

func New(gw *gateway.Client) *Store {
	return &Store{gw: gw}
}

type createRequest struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Title     string `json:"title,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

type updateRequest struct {
	Rating  int    `json:"rating,omitempty"`
	Title   string `json:"title,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// ListForProduct fetches a product's reviews, newest first.
func (s *Store) ListForProduct(ctx context.Context, productID int64, skip, limit int) ([]models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewStore.ListForProduct")
	defer span.End()

	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var reviews []models.Review
	path := fmt.Sprintf("/reviews/products/%d", productID)
	if err := s.gw.Get(ctx, path, query, &reviews); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.reviews = reviews
	s.lastErr = nil
	s.mu.Unlock()
	return reviews, nil
}

// Stats fetches the aggregate rating for a product.
func (s *Store) Stats(ctx context.Context, productID int64) (*models.ReviewStats, error) {
	ctx, span := util.StartSpan(ctx, "ReviewStore.Stats")
	defer span.End()

	var stats models.ReviewStats
	path := fmt.Sprintf("/reviews/products/%d/stats", productID)
	if err := s.gw.Get(ctx, path, nil, &stats); err != nil {
		s.setErr(err)
		return nil, err
	}
	return &stats, nil
}

// Mine fetches the current user's review for a product, or nil when
// they have not reviewed it.
func (s *Store) Mine(ctx context.Context, productID int64) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewStore.Mine")
	defer span.End()

	var review models.Review
	path := fmt.Sprintf("/reviews/products/%d/me", productID)
	if err := s.gw.Get(ctx, path, nil, &review); err != nil {
		if gateway.IsNotFound(err) {
			return nil, nil
		}
		s.setErr(err)
		return nil, err
	}
	return &review, nil
}

// Create posts a new review. One review per user per product; a second
// attempt comes back as a validation error.
func (s *Store) Create(ctx context.Context, productID int64, rating int, title, comment string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewStore.Create")
	defer span.End()

	var review models.Review
	req := createRequest{ProductID: productID, Rating: rating, Title: title, Comment: comment}
	if err := s.gw.Post(ctx, "/reviews/", req, &review); err != nil {
		s.setErr(err)
		return nil, err
	}
	return &review, nil
}

// Update edits the user's own review.
func (s *Store) Update(ctx context.Context, id int64, rating int, title, comment string) (*models.Review, error) {
	ctx, span := util.StartSpan(ctx, "ReviewStore.Update")
	defer span.End()

	var review models.Review
	req := updateRequest{Rating: rating, Title: title, Comment: comment}
	if err := s.gw.Put(ctx, fmt.Sprintf("/reviews/%d", id), req, &review); err != nil {
		s.setErr(err)
		return nil, err
	}
	return &review, nil
}

// Delete removes the user's own review.
func (s *Store) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ReviewStore.Delete")
	defer span.End()

	if err := s.gw.Delete(ctx, fmt.Sprintf("/reviews/%d", id), nil); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}

// Reviews returns the last fetched review list.
func (s *Store) Reviews() []models.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Review, len(s.reviews))
	copy(out, s.reviews)
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
