package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicer/internal/businesscontext"
	"github.com/smallbiznis/invoicer/internal/observability/logger"
	"go.uber.org/zap"
)

// WriteRateLimit throttles mutating invoice requests per business.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		businessID, ok := businesscontext.BusinessIDFromContext(ctx)
		if !ok {
			// The handler reports the missing business.
			c.Next()
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.writeLimiter.AllowBusiness(ctx, businessID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("write rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("write rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("business_id", businessID.String()),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter.Seconds())))
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Next()
	}
}

func retryAfterSeconds(seconds float64) int {
	if seconds <= 1 {
		return 1
	}
	return int(math.Ceil(seconds))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
