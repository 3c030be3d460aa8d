package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/invoicer/internal/audit/domain"
	"github.com/smallbiznis/invoicer/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert runs on db so callers can write the entry inside their own
// transaction or after it commits.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns newest-first entries of one business. One row beyond Limit is
// fetched so the caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("business_id = ?", filter.BusinessID)

	for column, value := range map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_type":  filter.ActorType,
	} {
		if value = strings.TrimSpace(value); value != "" {
			stmt = stmt.Where(column+" = ?", value)
		}
	}

	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if c := filter.Cursor; c != nil {
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	stmt = option.Apply(stmt,
		option.WithSortBy("created_at", option.Desc),
		option.WithSortBy("id", option.Desc),
	)
	if filter.Limit > 0 {
		stmt = option.WithLimit(filter.Limit + 1).Apply(stmt)
	}

	var entries []*domain.AuditLog
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
