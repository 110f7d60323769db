// Package httpapi is the inbound REST surface: order intake,
// image upload polling, the WhatsApp webhook, and the recovery/queue
// operator routes. It is a thin gin layer over the internal packages —
// every handler enqueues or validates, never performs long-lived I/O
// inline.
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/metrics"
)

// Server owns the gin engine and every dependency the route handlers
// close over.
type Server struct {
	Engine     *gin.Engine
	log        *logging.Logger
	production bool

	orders    *OrderHandlers
	webhook   *WebhookHandlers
	recovery  *RecoveryHandlers
	queues    *QueueHandlers
	selfHeal  *SelfHealHandlers
	vendors   *VendorHandlers
	retailers *RetailerHandlers
}

// Deps bundles the handler groups wired by cmd/marketplace.
type Deps struct {
	Orders   *OrderHandlers
	Webhook  *WebhookHandlers
	Recovery *RecoveryHandlers
	Queues   *QueueHandlers
	SelfHeal *SelfHealHandlers
	Vendors  *VendorHandlers
	Retailers *RetailerHandlers

	// Inbound fixed-window rate limit; zero values disable it.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// New builds the server and registers every route. production gates
// whether 5xx bodies carry raw error text or only an errorId.
func New(deps Deps, log *logging.Logger, production bool) *Server {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(requestID(), requestLogging(log), gin.Recovery())
	if deps.RateLimitMax > 0 && deps.RateLimitWindow > 0 {
		engine.Use(fixedWindowRateLimit(deps.RateLimitMax, deps.RateLimitWindow))
	}

	s := &Server{
		Engine: engine, log: log, production: production,
		orders: deps.Orders, webhook: deps.Webhook, recovery: deps.Recovery,
		queues: deps.Queues, selfHeal: deps.SelfHeal, vendors: deps.Vendors,
		retailers: deps.Retailers,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.Engine.Group("/")
	v1.POST("/orders", s.orders.Create)
	v1.POST("/orders/upload-image", s.orders.UploadImage)
	v1.GET("/orders/upload-image/:id", s.orders.UploadImageStatus)
	v1.POST("/whatsapp/webhook", s.webhook.Receive)
	v1.GET("/whatsapp/webhook", s.webhook.Verify)
	v1.GET("/recovery/dashboard", s.recovery.Dashboard)
	v1.POST("/recovery/trigger", s.recovery.Trigger)
	v1.GET("/queues/stats", s.queues.Stats)
	v1.GET("/queues/dlq", s.queues.DLQList)
	v1.GET("/queues/dlq/:id", s.queues.DLQInspect)
	v1.POST("/queues/dlq/:id/retry", s.queues.DLQRetry)
	v1.POST("/self-healing/run-cycle", s.selfHeal.RunCycle)
	v1.PUT("/vendors/:id/products/:productID/price", s.vendors.UpdatePrice)
	v1.POST("/retailers/:id/adjustments", s.retailers.Adjust)
}

// Run starts the HTTP server on addr, blocking until it stops.
func (s *Server) Run(addr string) error {
	return s.Engine.Run(addr)
}

// respondOK writes the standard success envelope.
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, apperrors.Envelope{Success: true, Data: data})
}

// respondErr writes the standard failure envelope, honoring production error
// redaction.
func respondErr(c *gin.Context, production bool, err error) {
	status, env := apperrors.ToEnvelope(err, production)
	c.JSON(status, env)
}

// fixedWindowRateLimit bounds total inbound requests per window. Coarse
// on purpose: per-client fairness belongs to the gateway in front, this
// guard only keeps a burst from starving the queue-submitting handlers.
func fixedWindowRateLimit(max int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	var windowStart time.Time
	var count int
	return func(c *gin.Context) {
		mu.Lock()
		now := time.Now()
		if now.Sub(windowStart) >= window {
			windowStart = now
			count = 0
		}
		count++
		over := count > max
		mu.Unlock()
		if over {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperrors.Envelope{
				Success: false,
				Error:   &apperrors.ErrorBody{Code: "RATE_LIMITED", Message: "too many requests, slow down", Retryable: true},
			})
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func requestLogging(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithRequestID(c.GetString("request_id")).Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
