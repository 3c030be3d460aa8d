// Package option holds reusable gorm query modifiers.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// WithSortBy orders by column. Columns are caller-controlled identifiers and
// must never come from request input.
func WithSortBy(column string, direction SortDirection) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column = strings.TrimSpace(column)
		if column == "" {
			return db
		}
		if direction != Asc {
			direction = Desc
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	})
}

// WithOffset applies LIMIT/OFFSET for a 1-based page.
func WithOffset(page, limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		if page < 1 {
			page = 1
		}
		return db.Limit(limit).Offset((page - 1) * limit)
	})
}

// WithLimit caps the number of rows.
func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithCondition adds a raw WHERE clause with bound args.
func WithCondition(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// Apply runs every option in order.
func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt != nil {
			db = opt.Apply(db)
		}
	}
	return db
}
