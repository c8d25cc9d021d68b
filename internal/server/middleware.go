package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"immigration-advisor/internal/common/auth"
	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/upstream"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"
	userIDKey       = "userId"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(elapsed.Seconds())

		s.logger.Debug("request served", map[string]interface{}{
			"requestId":  c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
		})
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.respondError(c, errors.NewInternalError(fmt.Errorf("panic: %v", recovered)))
	})
}

// authenticate validates the bearer token and carries both the principal and
// the raw token in the request context; the token is forwarded upstream.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			s.respondError(c, err)
			return
		}

		principal, err := s.tokens.Validate(c.Request.Context(), token)
		if err != nil {
			s.respondError(c, err)
			return
		}

		ctx := auth.WithPrincipal(c.Request.Context(), principal)
		ctx = upstream.WithBearerToken(ctx, token)
		c.Request = c.Request.WithContext(ctx)
		c.Set(userIDKey, principal.UserID)
		c.Next()
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
