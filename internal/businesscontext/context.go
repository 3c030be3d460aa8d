package businesscontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// BusinessContextKey is the request context key for the active business ID.
type BusinessContextKey struct{}

// WithBusinessID stores the business ID in the context.
func WithBusinessID(ctx context.Context, businessID snowflake.ID) context.Context {
	return context.WithValue(ctx, BusinessContextKey{}, businessID)
}

// BusinessIDFromContext returns the business ID from context, if set.
func BusinessIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(BusinessContextKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
