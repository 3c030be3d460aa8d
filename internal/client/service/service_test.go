package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicer/internal/businesscontext"
	"github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/client/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Client{}))

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		require.NoError(t, db.Create(&domain.Client{
			ID:         snowflake.ID(100 + i),
			BusinessID: 1,
			Name:       fmt.Sprintf("Client %d", i),
			Email:      fmt.Sprintf("c%d@example.test", i),
			CreatedAt:  now,
			UpdatedAt:  now,
		}).Error)
	}
	require.NoError(t, db.Create(&domain.Client{ID: 200, BusinessID: 2, Name: "Other", Email: "o@example.test", CreatedAt: now, UpdatedAt: now}).Error)

	return db, New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})
}

func TestListPagesNewestFirst(t *testing.T) {
	_, svc := setup(t)
	ctx := businesscontext.WithBusinessID(context.Background(), 1)

	first, err := svc.List(ctx, domain.ListClientRequest{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Clients, 3)
	assert.Equal(t, snowflake.ID(105), first.Clients[0].ID)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListClientRequest{PageSize: 3, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Clients, 2)
	assert.Equal(t, snowflake.ID(102), second.Clients[0].ID)
	assert.False(t, second.HasMore)
}

func TestListRequiresBusiness(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.List(context.Background(), domain.ListClientRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidBusiness)
}

func TestGetByIDIsScopedToBusiness(t *testing.T) {
	_, svc := setup(t)
	ctx := businesscontext.WithBusinessID(context.Background(), 1)

	got, err := svc.GetByID(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "Client 1", got.Name)

	_, err = svc.GetByID(ctx, "200")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
