package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"farmbox-service/internal/service"
	"farmbox-service/internal/store"
	"farmbox-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxWebhookBodyBytes = int64(65536)

// Handler contains HTTP handlers
type Handler struct {
	bags          *service.BagService
	checkout      *service.CheckoutService
	paymentSync   *service.PaymentSyncService
	subscriptions *service.SubscriptionService
	orders        *service.OrderService
	jwtSecret     string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	bags *service.BagService,
	checkout *service.CheckoutService,
	paymentSync *service.PaymentSyncService,
	subscriptions *service.SubscriptionService,
	orders *service.OrderService,
	jwtSecret string,
) *Handler {
	return &Handler{
		bags:          bags,
		checkout:      checkout,
		paymentSync:   paymentSync,
		subscriptions: subscriptions,
		orders:        orders,
		jwtSecret:     jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/stripe", h.stripeWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/verify", h.verifyPayment)
		v1.GET("/box-sizes", h.listBoxSizes)

		authed := v1.Group("")
		authed.Use(AuthMiddleware(h.jwtSecret))
		{
			authed.POST("/checkout", h.createCheckout)
			authed.GET("/subscription", h.checkSubscription)
			authed.POST("/subscription/cancel", h.cancelSubscription)
			authed.GET("/bag", h.getBag)
			authed.PUT("/bag/box-size", h.changeBoxSize)
			authed.POST("/bag/confirm", h.confirmBag)
			authed.POST("/bag/unconfirm", h.unconfirmBag)
			authed.POST("/bag/items", h.addBagItem)
			authed.GET("/orders", h.listOrders)
			authed.PUT("/orders/:id/status", h.updateOrderStatus)
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

// stripeWebhook handles provider webhook deliveries. The raw body and the
// Stripe-Signature header go to the sync service untouched; signature
// failures reject with 400 and no side effects.
func (h *Handler) stripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if err := h.paymentSync.HandleWebhook(c.Request.Context(), body, sigHeader); err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, service.ErrInvalidSignature) && !errors.Is(err, store.ErrOrderNotFound) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type verifyPaymentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// verifyPayment handles client-triggered verification after redirect
func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing session id"})
		return
	}

	result, err := h.paymentSync.VerifySession(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type createCheckoutRequest struct {
	BoxSize string `json:"box_size"`
}

// createCheckout starts a hosted checkout session
func (h *Handler) createCheckout(c *gin.Context) {
	var req createCheckoutRequest
	_ = c.ShouldBindJSON(&req) // absent/invalid box size falls back to medium

	resp, err := h.checkout.CreateSession(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxEmail), req.BoxSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// checkSubscription syncs and reports the user's subscription state
func (h *Handler) checkSubscription(c *gin.Context) {
	status, err := h.subscriptions.Check(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxEmail))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check subscription"})
		return
	}

	c.JSON(http.StatusOK, status)
}

type cancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

// cancelSubscription cancels at the provider and records it locally
func (h *Handler) cancelSubscription(c *gin.Context) {
	var req cancelSubscriptionRequest
	_ = c.ShouldBindJSON(&req)

	err := h.subscriptions.Cancel(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxEmail), req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// listBoxSizes returns the box-size catalog
func (h *Handler) listBoxSizes(c *gin.Context) {
	sizes, err := h.bags.ListBoxSizes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load box sizes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"box_sizes": sizes})
}

// listOrders returns the user's order history
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus moves an order through its fulfillment lifecycle
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.orders.AdvanceOrder(c.Request.Context(), orderID, req.Status); err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, store.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// getBag returns (creating when absent) the user's current week bag
func (h *Handler) getBag(c *gin.Context) {
	view, err := h.bags.CurrentBag(c.Request.Context(),
		c.GetString(ctxUserID), c.Query("box_size"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load weekly bag"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// changeBoxSize runs the box-size change workflow
func (h *Handler) changeBoxSize(c *gin.Context) {
	var req service.ChangeBoxSizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.bags.ChangeBoxSize(c.Request.Context(), c.GetString(ctxUserID), req)
	if err != nil {
		h.respondBagError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// confirmBag confirms the current week's bag before cutoff
func (h *Handler) confirmBag(c *gin.Context) {
	view, err := h.bags.Confirm(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		h.respondBagError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// unconfirmBag reopens the current week's bag before cutoff
func (h *Handler) unconfirmBag(c *gin.Context) {
	view, err := h.bags.Unconfirm(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		h.respondBagError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// addBagItem adds a product to the current week's bag
func (h *Handler) addBagItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	view, err := h.bags.AddItem(c.Request.Context(), c.GetString(ctxUserID), req)
	if err != nil {
		h.respondBagError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) respondBagError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBagLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "weekly bag is locked"})
	case errors.Is(err, store.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "bag was modified concurrently, re-read and retry"})
	case errors.Is(err, service.ErrInvalidBoxSize), errors.Is(err, service.ErrInvalidItemType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update weekly bag"})
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
