package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/catalog"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/gateway"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/order"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/session"
	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionCookie = "storefront_session"
const cookieMaxAge = 60 * 60 * 48

const storeSetKey = "storeSet"
const sessionIDKey = "sessionID"

// Handler contains the HTTP surface over the stores. Pages are expected
// to render from the JSON these routes return; the handler itself only
// orchestrates store calls.
type Handler struct {
	registry *Registry
}

// NewHandler creates a new HTTP handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.sessionMiddleware())
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/login", h.login)
		v1.POST("/auth/logout", h.logout)
		v1.GET("/auth/session", h.checkSession)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/reviews", h.listReviews)
		v1.GET("/products/:id/reviews/stats", h.reviewStats)
		v1.GET("/categories", h.listCategories)

		v1.POST("/reviews", h.createReview)
		v1.PUT("/reviews/:id", h.updateReview)
		v1.DELETE("/reviews/:id", h.deleteReview)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productID", h.updateCartItem)
		v1.DELETE("/cart/items/:productID", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/checkout", h.checkout)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/transitions", h.orderTransitions)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/reorder", h.reorder)

		v1.GET("/wishlist", h.getWishlist)
		v1.POST("/wishlist", h.addWishlistItem)
		v1.DELETE("/wishlist/:productID", h.removeWishlistItem)
		v1.POST("/wishlist/:productID/move-to-cart", h.moveWishlistItemToCart)

		admin := v1.Group("/admin")
		admin.Use(h.requireAdmin())
		{
			admin.GET("/orders", h.listOrders)
			admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// sessionMiddleware assigns a session cookie on first visit and
// attaches the session's store set to the request context. The cookie
// value is client-supplied and ends up as a storage key (under the file
// backend, a filename), so anything that is not a UUID we minted is
// discarded and replaced.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || !validSessionID(id) {
			id = uuid.New().String()
			c.SetCookie(sessionCookie, id, cookieMaxAge, "/", "", false, true)
		}
		c.Set(sessionIDKey, id)
		c.Set(storeSetKey, h.registry.Get(id))
		c.Next()
	}
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// requireAdmin rejects sessions whose verified identity is not an
// admin. The role check is a pure read of the session store.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		set := storeSet(c)
		if set.Session.Current() == nil {
			if _, err := set.Session.CheckSession(c.Request.Context()); err != nil {
				writeError(c, err)
				c.Abort()
				return
			}
		}
		if !set.Session.IsPrivileged() {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func storeSet(c *gin.Context) *StoreSet {
	return c.MustGet(storeSetKey).(*StoreSet)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

// register handles account creation followed by login
func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, err := storeSet(c).Session.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

// login handles credential exchange
func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	identity, err := storeSet(c).Session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// logout clears the session; it cannot fail. The store set is dropped
// from the registry so the next request on this cookie starts clean.
func (h *Handler) logout(c *gin.Context) {
	set := storeSet(c)
	set.Session.Logout()
	set.Cart.Reset()
	h.registry.Drop(c.GetString(sessionIDKey))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// checkSession verifies the persisted token, if any
func (h *Handler) checkSession(c *gin.Context) {
	identity, err := storeSet(c).Session.CheckSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if identity == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "identity": identity})
}

// listProducts lists the catalog under the query's filter
func (h *Handler) listProducts(c *gin.Context) {
	set := storeSet(c)

	categoryID, _ := strconv.ParseInt(c.Query("category_id"), 10, 64)
	skip, _ := strconv.Atoi(c.Query("skip"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	set.Catalog.SetFilter(catalog.Filter{
		Search:     c.Query("search"),
		CategoryID: categoryID,
		Skip:       skip,
		Limit:      limit,
	})

	products, err := set.Catalog.FetchProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// getProduct fetches a single product
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := storeSet(c).Catalog.FetchProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// listCategories fetches the category list
func (h *Handler) listCategories(c *gin.Context) {
	categories, err := storeSet(c).Catalog.FetchCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// listReviews lists a product's reviews
func (h *Handler) listReviews(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	skip, _ := strconv.Atoi(c.Query("skip"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	reviews, err := storeSet(c).Reviews.ListForProduct(c.Request.Context(), id, skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// reviewStats fetches a product's aggregate rating
func (h *Handler) reviewStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := storeSet(c).Reviews.Stats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type reviewRequest struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

// createReview posts a new review
func (h *Handler) createReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := storeSet(c).Reviews.Create(c.Request.Context(), req.ProductID, req.Rating, req.Title, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// updateReview edits the user's own review
func (h *Handler) updateReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := storeSet(c).Reviews.Update(c.Request.Context(), id, req.Rating, req.Title, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// deleteReview removes the user's own review
func (h *Handler) deleteReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := storeSet(c).Reviews.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getCart fetches the cart; new and anonymous visitors get an empty one
func (h *Handler) getCart(c *gin.Context) {
	cartState, err := storeSet(c).Cart.Fetch(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartState)
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// addCartItem adds a product to the cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cartState, err := storeSet(c).Cart.AddItem(c.Request.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartState)
}

// updateCartItem changes a line item's quantity
func (h *Handler) updateCartItem(c *gin.Context) {
	productID, ok := paramID(c, "productID")
	if !ok {
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	cartState, err := storeSet(c).Cart.UpdateItem(c.Request.Context(), productID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartState)
}

// removeCartItem drops a line item
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, ok := paramID(c, "productID")
	if !ok {
		return
	}
	cartState, err := storeSet(c).Cart.RemoveItem(c.Request.Context(), productID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartState)
}

// clearCart empties the cart; the confirm dialog lives client-side
func (h *Handler) clearCart(c *gin.Context) {
	if err := storeSet(c).Cart.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}

// checkout creates an order from the cart and resets the local copy
func (h *Handler) checkout(c *gin.Context) {
	var req order.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	set := storeSet(c)
	created, err := set.Orders.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	// The server already emptied the cart; mirror that locally.
	set.Cart.Reset()
	c.JSON(http.StatusCreated, created)
}

// listOrders lists the session's orders, most recent first
func (h *Handler) listOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	skip, _ := strconv.Atoi(c.Query("skip"))
	filter := order.ListFilter{
		Status: models.OrderStatus(c.Query("status")),
		Limit:  limit,
		Skip:   skip,
	}

	orders, err := storeSet(c).Orders.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder fetches a single order
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fetched, err := storeSet(c).Orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fetched)
}

// orderTransitions returns the statuses the order may move to next;
// status selectors must offer exactly this set.
func (h *Handler) orderTransitions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	set := storeSet(c)
	fetched, err := set.Orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	allowed := models.AllowedNextStatuses(fetched.Status)
	if allowed == nil {
		allowed = []models.OrderStatus{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      fetched.Status,
		"allowed":     allowed,
		"cancellable": fetched.Status.CanCancel(),
	})
}

// cancelOrder cancels an order when the transition table permits it
func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cancelled, err := storeSet(c).Orders.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelled)
}

// reorder puts a past order's items back into the cart
func (h *Handler) reorder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := storeSet(c).Orders.Reorder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// updateOrderStatus moves an order along the fulfillment table (admin)
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := storeSet(c).Orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// getWishlist fetches the saved products
func (h *Handler) getWishlist(c *gin.Context) {
	items, err := storeSet(c).Wishlist.Fetch(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type wishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}

// addWishlistItem saves a product
func (h *Handler) addWishlistItem(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := storeSet(c).Wishlist.Add(c.Request.Context(), req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// removeWishlistItem drops a saved product
func (h *Handler) removeWishlistItem(c *gin.Context) {
	productID, ok := paramID(c, "productID")
	if !ok {
		return
	}
	if err := storeSet(c).Wishlist.Remove(c.Request.Context(), productID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// moveWishlistItemToCart adds the saved product to the cart, then
// removes it from the wishlist
func (h *Handler) moveWishlistItemToCart(c *gin.Context) {
	productID, ok := paramID(c, "productID")
	if !ok {
		return
	}

	set := storeSet(c)
	cartState, err := set.Cart.AddItem(c.Request.Context(), productID, 1)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := set.Wishlist.Remove(c.Request.Context(), productID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartState)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// writeError maps store failures onto HTTP responses. Gateway errors
// keep their upstream status; network failures read as 502.
func writeError(c *gin.Context, err error) {
	var ge *gateway.Error
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrTransitionNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &ge):
		status := ge.Status
		if ge.Category == gateway.CategoryNetwork {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": ge.Detail})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
