package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/igefined/b3-pulse/internal/metrics"
)

func NewRouter(h *Handlers, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(recovery(logger), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
	}), requestLog(logger))

	api := router.Group("/api")
	api.GET("/health", h.Health)
	api.GET("/ibov-pulse", h.IbovPulse)
	api.GET("/di-curve", h.DICurve)
	api.GET("/tradable-stocks", h.TradableStocks)
	api.GET("/candlestick/:symbol/:timeframe", h.Candlestick)
	api.GET("/symbol-info/:symbol", h.SymbolInfo)
	api.GET("/correlation/:instrument", h.Correlation)
	api.GET("/win-wdo-correlation", h.WinWdoCorrelation)
	api.GET("/refresh-report", h.RefreshReport)

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return router
}

// recovery answers with a JSON error instead of an empty 500.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Handler panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func requestLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
