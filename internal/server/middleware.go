package server

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicer/internal/businesscontext"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
)

const (
	HeaderBusinessID = "X-Business-Id"
	HeaderActorID    = "X-Actor-Id"
)

// BusinessContext resolves the active business from the X-Business-Id
// header. Authentication happens upstream; the header is trusted. When the
// header is absent the configured default business is used, if any.
func (s *Server) BusinessContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderBusinessID))

		var businessID snowflake.ID
		switch {
		case raw != "":
			parsed, err := snowflake.ParseString(raw)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError("business_id", "invalid", "X-Business-Id must be a numeric id"))
				return
			}
			businessID = parsed
		case s.cfg.DefaultBusinessID > 0:
			businessID = snowflake.ID(s.cfg.DefaultBusinessID)
		default:
			c.Next()
			return
		}

		ctx := businesscontext.WithBusinessID(c.Request.Context(), businessID)
		ctx = obscontext.WithBusinessID(ctx, businessID.String())
		if actorID := strings.TrimSpace(c.GetHeader(HeaderActorID)); actorID != "" {
			ctx = obscontext.WithActor(ctx, "user", actorID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestTimeout bounds the request context so an abandoned request also
// aborts its transaction.
func (s *Server) RequestTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RequestTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
