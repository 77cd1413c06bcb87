package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/metrics"
	"github.com/layer-3/walletauth/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter sets up the Gin router. gatherer backs /metrics.
func SetupRouter(authService *service.AuthService, m *metrics.Metrics, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log.Named("http"), m))

	// Create handlers
	handlers := NewAuthHandlers(authService, log.Named("handlers"))

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/chains", handlers.Chains)

	// Public wallet routes
	web3 := router.Group("/web3")
	{
		web3.POST("/challenge", handlers.Challenge)
		web3.POST("/login", handlers.Login)
		web3.POST("/verify", handlers.Verify)
		web3.POST("/logout", handlers.Logout)
	}

	// Session routes
	authed := web3.Group("")
	authed.Use(AuthMiddleware(authService, log.Named("auth")))
	{
		authed.GET("/tokens", handlers.Tokens)
		authed.POST("/deactivate", handlers.Deactivate)
		authed.GET("/addresses", handlers.Addresses)
		authed.POST("/addresses", handlers.LinkAddress)
		authed.POST("/addresses/:address/auth", handlers.SetAddressAuth)
		authed.POST("/sync/:kind", handlers.Sync)
	}

	return router
}
