package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/metrics"
)

// NewRouter wires the results API, /metrics and, when ws is non-nil, the
// progress stream at /ws.
func NewRouter(h *Handler, ws http.Handler, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), metrics.Middleware(), CORS())

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/datasets", h.Datasets)
		api.GET("/metrics", h.Metrics)
		api.GET("/predictions/:dataset", h.Predictions)
		api.GET("/plots/:filename", h.Plot)
		api.GET("/available-plots", h.AvailablePlots)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}
	return r
}

// CORS allows every origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request at debug level, or warn for
// server errors.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warnw("request failed", kv...)
			return
		}
		log.Debugw("request", kv...)
	}
}
