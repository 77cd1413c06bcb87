package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/metrics"
	"github.com/layer-3/walletauth/service"
	"go.uber.org/zap"
)

const sessionKey = "session"

// bearerToken extracts the token from an Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(auth[7:]), true
}

// AuthMiddleware creates middleware that authenticates bearer sessions
func AuthMiddleware(authService *service.AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Missing bearer token"})
			return
		}

		session, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, detail := statusFor(err)
			if status == http.StatusInternalServerError {
				log.Error("authentication failed", zap.Error(err))
			} else {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"detail": detail})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// currentSession returns the session stored by AuthMiddleware
func currentSession(c *gin.Context) core.Session {
	return c.MustGet(sessionKey).(core.Session)
}

// RequestLogger logs each request with zap and records its latency
func RequestLogger(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(latency.Seconds())

		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()))
	}
}
