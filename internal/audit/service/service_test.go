package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	"github.com/smallbiznis/invoicer/internal/audit/repository"
	"github.com/smallbiznis/invoicer/internal/businesscontext"
	"github.com/smallbiznis/invoicer/internal/clock"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, db, fake
}

func TestAuditLogResolvesContext(t *testing.T) {
	svc, db, _ := newTestService(t)

	ctx := businesscontext.WithBusinessID(context.Background(), snowflake.ID(7))
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = obscontext.WithActor(ctx, "user", "u-9")
	ctx = obscontext.WithIPAddress(ctx, "10.0.0.1")

	targetID := "42"
	err := svc.AuditLog(ctx, auditdomain.Entry{
		Action:     "invoice.sent",
		TargetType: "invoice",
		TargetID:   &targetID,
		Metadata:   map[string]any{"recipient": "billing@acme.test"},
	})
	require.NoError(t, err)

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	require.NotNil(t, stored.BusinessID)
	assert.Equal(t, snowflake.ID(7), *stored.BusinessID)
	assert.Equal(t, "user", stored.ActorType)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "u-9", *stored.ActorID)
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "10.0.0.1", *stored.IPAddress)
	assert.Nil(t, stored.UserAgent)
	assert.Equal(t, "req-1", stored.Metadata["request_id"])
	assert.Equal(t, "b****@acme.test", stored.Metadata["recipient"])
}

func TestAuditLogDefaultsAndValidation(t *testing.T) {
	svc, db, _ := newTestService(t)

	assert.ErrorIs(t, svc.AuditLog(context.Background(), auditdomain.Entry{Action: " "}), auditdomain.ErrInvalidAction)

	require.NoError(t, svc.AuditLog(context.Background(), auditdomain.Entry{Action: "invoice.overdue"}))

	var stored auditdomain.AuditLog
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), stored.ActorType)
	assert.Equal(t, "unknown", stored.TargetType)
	assert.Nil(t, stored.BusinessID)
}

func TestListPaginatesByBusiness(t *testing.T) {
	svc, _, fake := newTestService(t)

	business := businesscontext.WithBusinessID(context.Background(), snowflake.ID(7))
	other := businesscontext.WithBusinessID(context.Background(), snowflake.ID(8))

	for i := 0; i < 3; i++ {
		fake.Advance(time.Minute)
		require.NoError(t, svc.AuditLog(business, auditdomain.Entry{Action: "invoice.created", TargetType: "invoice"}))
	}
	require.NoError(t, svc.AuditLog(other, auditdomain.Entry{Action: "invoice.created", TargetType: "invoice"}))

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	first, err := svc.List(business, req)
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	req.PageToken = first.NextPageToken
	second, err := svc.List(business, req)
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	_, err = svc.List(context.Background(), req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidBusiness)

	req.PageToken = "not-a-token"
	_, err = svc.List(business, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
