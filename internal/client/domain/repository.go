package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Client, error)
	List(ctx context.Context, db *gorm.DB, businessID snowflake.ID, filter ListClientFilter, page pagination.Pagination) ([]*Client, error)
}
