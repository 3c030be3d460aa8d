package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/business/domain"
	"github.com/smallbiznis/invoicer/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	store repository.Repository[domain.Business]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{store: repository.ProvideStore[domain.Business](db)}
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Business, error) {
	return r.store.FindOne(ctx, &domain.Business{ID: id})
}
