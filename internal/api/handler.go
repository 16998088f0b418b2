package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"recycling-rewards/internal/points"
	"recycling-rewards/internal/service"
	"recycling-rewards/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService  *service.OrderService
	rewardService *service.RewardService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, rewardService *service.RewardService) *Handler {
	return &Handler{
		orderService:  orderService,
		rewardService: rewardService,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders/:id/complete", h.completeOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.GET("/orders/:id", h.getOrder)

		v1.POST("/redemptions", h.redeemReward)

		v1.GET("/rewards", h.listRewards)
		v1.GET("/rewards/low-stock", h.lowStockRewards)
		v1.GET("/rewards/:id", h.getReward)
		v1.PATCH("/rewards/:id/stock", h.adjustStock)

		v1.GET("/users/:id/balance", h.userBalance)
		v1.GET("/users/:id/history", h.userHistory)
		v1.GET("/users/:id/history/summary", h.userSummary)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// completeOrder transitions a pending order to completed and awards points
func (h *Handler) completeOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.orderService.CompleteOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// cancelOrder transitions an order to cancelled; points are never touched
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": "CANCELLED"})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, materials, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"materials": materials,
	})
}

// RedeemRequest represents a reward redemption request
type RedeemRequest struct {
	UserID   int64 `json:"user_id" binding:"required"`
	RewardID int64 `json:"reward_id" binding:"required"`
}

func (h *Handler) redeemReward(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	history, err := h.rewardService.Redeem(c.Request.Context(), req.UserID, req.RewardID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, history)
}

func (h *Handler) listRewards(c *gin.Context) {
	rewards, err := h.rewardService.ListRewards(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

func (h *Handler) getReward(c *gin.Context) {
	rewardID, ok := pathID(c)
	if !ok {
		return
	}

	reward, err := h.rewardService.GetReward(c.Request.Context(), rewardID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, reward)
}

func (h *Handler) lowStockRewards(c *gin.Context) {
	threshold := int64(10)
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold"})
			return
		}
		threshold = parsed
	}

	rewards, err := h.rewardService.LowStockRewards(c.Request.Context(), threshold)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rewards": rewards, "threshold": threshold})
}

// AdjustStockRequest represents an administrative stock correction
type AdjustStockRequest struct {
	Delta int64 `json:"delta" binding:"required"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	rewardID, ok := pathID(c)
	if !ok {
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	newStock, err := h.rewardService.AdjustStock(c.Request.Context(), rewardID, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward_id": rewardID, "stock_quantity": newStock})
}

func (h *Handler) userBalance(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.rewardService.UserBalance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "points": user.Points})
}

func (h *Handler) userHistory(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	history, err := h.rewardService.UserHistory(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "history": history})
}

func (h *Handler) userSummary(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	summary, err := h.rewardService.UserSummary(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses. Validation failures map
// to 4xx; anything unclassified is a storage fault and maps to 500.
func writeError(c *gin.Context, err error) {
	var invalidCategory *points.ErrInvalidMaterialCategory

	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRewardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrRewardUnavailable),
		errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInsufficientPoints):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidStockAdjustment),
		errors.As(err, &invalidCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
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
