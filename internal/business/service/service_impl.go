package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicer/internal/business/domain"
	"github.com/smallbiznis/invoicer/internal/cache"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const businessTTL = 30 * time.Second

type Params struct {
	fx.In

	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	cache cache.Cache[snowflake.ID, domain.Business]
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("business.service"),
		repo:  p.Repo,
		cache: cache.NewTTLCache[snowflake.ID, domain.Business](),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Business, error) {
	if id == 0 {
		return domain.Business{}, domain.ErrInvalidID
	}
	if cached, ok := s.cache.Get(id); ok {
		return cached, nil
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	if item == nil {
		return domain.Business{}, domain.ErrNotFound
	}

	s.cache.Set(id, *item, businessTTL)
	return *item, nil
}

func (s *Service) Invalidate(id snowflake.ID) {
	s.cache.Delete(id)
}
