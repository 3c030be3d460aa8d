package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID = errors.New("invalid_business_id")
	ErrNotFound  = errors.New("business_not_found")
)

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Business, error)
}

type Service interface {
	// GetByID returns the business, served from a short-lived cache.
	GetByID(ctx context.Context, id snowflake.ID) (Business, error)
	// Invalidate drops a cached business.
	Invalidate(id snowflake.ID)
}
