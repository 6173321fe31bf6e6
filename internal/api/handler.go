package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"storebot/internal/models"
	"storebot/internal/service"
	"storebot/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	donationSecretHeader = "X-Donation-Secret"
	idempotencyHeader    = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// Donator credits donations
type Donator interface {
	Donate(ctx context.Context, growID, deposit string) (*service.DonationResult, error)
}

// StockLister lists products with their available counts
type StockLister interface {
	Overview(ctx context.Context) ([]models.ProductStock, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// IdempotencyGuard remembers request keys that were already processed
type IdempotencyGuard interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Handler contains HTTP handlers
type Handler struct {
	donations   Donator
	stock       StockLister
	secret      string
	checks      map[string]Pinger
	idempotency IdempotencyGuard
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler. An empty secret disables the
// donation secret check.
func NewHandler(donations Donator, stock StockLister, secret string) *Handler {
	return &Handler{
		donations: donations,
		stock:     stock,
		secret:    secret,
		checks:    map[string]Pinger{},
		logger:    util.Named("api"),
	}
}

// WithReadinessCheck adds a dependency to /ready
func (h *Handler) WithReadinessCheck(name string, p Pinger) *Handler {
	h.checks[name] = p
	return h
}

// WithIdempotency deduplicates donations carrying an Idempotency-Key header
func (h *Handler) WithIdempotency(g IdempotencyGuard) *Handler {
	h.idempotency = g
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/donations", h.receiveDonation)
		v1.GET("/stock", h.listStock)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := gin.H{}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// DonationRequest is the payload posted by the in-game donation box
type DonationRequest struct {
	GrowID  string `json:"GrowID" binding:"required"`
	Deposit string `json:"Deposit" binding:"required"`
}

// receiveDonation credits a donation
func (h *Handler) receiveDonation(c *gin.Context) {
	if h.secret != "" {
		given := c.GetHeader(donationSecretHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid donation secret"})
			return
		}
	}

	var req DonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	key := c.GetHeader(idempotencyHeader)
	if key != "" && h.idempotency != nil {
		key = "donation:" + key
		first, err := h.idempotency.ClaimIdempotencyKey(ctx, key, idempotencyTTL)
		if err != nil {
			h.logger.Warn("Idempotency check failed", zap.Error(err))
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	result, err := h.donations.Donate(ctx, req.GrowID, req.Deposit)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if rerr := h.idempotency.ReleaseIdempotencyKey(ctx, key); rerr != nil {
				h.logger.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}

		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidGrowID) || errors.Is(err, service.ErrInvalidDeposit) {
			status = http.StatusBadRequest
		} else {
			h.logger.Error("Donation failed", zap.String("growid", req.GrowID), zap.Error(err))
		}
		c.JSON(status, gin.H{
			"error":   "Failed to process donation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"transaction_id": result.Transaction.ID,
		"growid":         req.GrowID,
		"credited_wl":    result.CreditedWL,
		"new_balance":    models.BalanceFromWLs(result.NewBalance).Format(),
	})
}

// listStock returns the stock overview
func (h *Handler) listStock(c *gin.Context) {
	products, err := h.stock.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list stock", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"time":     time.Now().Unix(),
	})
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
