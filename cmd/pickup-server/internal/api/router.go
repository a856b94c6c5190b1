package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coregx/pickup"
)

// MetricsExporter is the part of the metrics package the router uses.
type MetricsExporter interface {
	Middleware() gin.HandlerFunc
	Handler() http.Handler
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	p := r.Group("/pickup")
	p.POST("/store-message", h.HandleStoreMessage)
	p.POST("/messages/by-verkey", h.HandleMessagesByVerkey)
	p.POST("/messages/by-idlist", h.HandleMessagesByIDList)
	p.POST("/messages/:message_id", h.HandleMessageByID)
	p.POST("/:connection_id/batch_pickup", h.HandleBatchPickup)
	p.POST("/:connection_id/status", h.HandleStatus)
	p.POST("/:connection_id/list_pickup", h.HandleListPickup)

	r.POST("/agent/inbound", h.HandleInbound)
	r.GET("/health", h.HandleHealth)
}

// NewRouter builds the gin engine. m may be nil.
func NewRouter(h *Handler, m MetricsExporter, logger pickup.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(logger))
	if m != nil {
		r.Use(m.Middleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	h.RegisterRoutes(r)
	return r
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger pickup.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s - %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
