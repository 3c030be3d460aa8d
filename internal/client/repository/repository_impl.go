package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/pkg/db/option"
	"github.com/smallbiznis/invoicer/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, business_id, name, email, address, created_at, updated_at
		 FROM clients WHERE business_id = ? AND id = ?`,
		businessID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

// List pages newest first. Snowflake IDs are time ordered, so the cursor only
// needs the last ID. One extra row is fetched to detect another page.
func (r *repo) List(ctx context.Context, db *gorm.DB, businessID snowflake.ID, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("business_id = ?", businessID)
	if name := strings.ToLower(strings.TrimSpace(filter.Name)); name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+name+"%")
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = option.Apply(stmt,
		option.WithSortBy("id", option.Desc),
		option.WithLimit(page.PageSize+1),
	)
	if err := stmt.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}
