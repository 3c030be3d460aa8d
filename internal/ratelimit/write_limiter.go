package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicer/internal/config"
)

const keyWriteBusiness = "invoicer:write:business:%s"

// WriteLimiter throttles mutating invoice requests per business.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWriteLimiter returns nil when redis or the limits are not configured.
func NewWriteLimiter(cfg config.Config, client *redis.Client) *WriteLimiter {
	if client == nil || cfg.WriteRateLimit <= 0 || cfg.WriteRateBurst <= 0 {
		return nil
	}
	return &WriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.WriteRateLimit,
		burst:  cfg.WriteRateBurst,
	}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowBusiness consumes one write token of businessID.
func (l *WriteLimiter) AllowBusiness(ctx context.Context, businessID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, WriteKey(businessID), l.rate, l.burst)
}

// WriteKey is the bucket key of a business.
func WriteKey(businessID string) string {
	return fmt.Sprintf(keyWriteBusiness, strings.TrimSpace(businessID))
}
