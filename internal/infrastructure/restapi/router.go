package restapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	AllowedOrigins []string
	// MetricsHandler overrides the default Prometheus handler (tests register on their own registry).
	MetricsHandler http.Handler
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(h *Handler, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))
	router.Use(ZapLoggerMiddleware(log))
	router.Use(gin.Recovery())

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Группа для API v1
	v1 := router.Group("/api/v1")
	{
		session := v1.Group("/session")
		session.GET("", h.GetSession)
		session.POST("/connect", h.Connect)
		session.POST("/disconnect", h.Disconnect)
		session.POST("/accounts", h.AccountsChanged)
		session.POST("/chain", h.ChainChanged)

		tokens := v1.Group("/tokens")
		tokens.GET("", h.GetTokens)
		tokens.POST("/scan", h.Scan)
		tokens.POST("/custom", h.AddCustomToken)

		capabilities := v1.Group("/capabilities")
		capabilities.GET("", h.GetCapabilities)
		capabilities.GET("/report", h.GetSupportReport)

		transfers := v1.Group("/transfers")
		transfers.GET("/state", h.GetTransferState)
		transfers.POST("/batch", h.ExecuteBatch)
		transfers.POST("/fallback/confirm", h.ConfirmFallback)
		transfers.POST("/fallback/decline", h.DeclineFallback)
		transfers.POST("/traditional", h.ExecuteTraditional)
		transfers.POST("/test", h.TestTransfer)

		v1.GET("/status", h.GetStatus)
		v1.GET("/events", h.StreamEvents)
		v1.GET("/history", h.GetHistory)
	}

	return router
}
