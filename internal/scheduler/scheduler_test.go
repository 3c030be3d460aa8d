package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/invoicetest"
	invoicerepository "github.com/smallbiznis/invoicer/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoicer/internal/invoice/service"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	schedtesting "github.com/smallbiznis/invoicer/internal/scheduler/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockInvoiceSvc struct {
	invoicedomain.Service
	mock.Mock
}

func (m *mockInvoiceSvc) MarkOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	args := m.Called(now, limit)
	return args.Int(0), args.Error(1)
}

type fakeLocker struct {
	acquired bool
	err      error
	locked   []string
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	l.locked = append(l.locked, name)
	if l.err != nil {
		return "", false, l.err
	}
	return "token-1", l.acquired, nil
}

func (l *fakeLocker) Release(_ context.Context, name, token string) error {
	l.released = append(l.released, name+"|"+token)
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func newTestScheduler(t *testing.T, svc invoicedomain.Service, cfg Config) (*Scheduler, *prometheus.Registry, *clock.FakeClock) {
	t.Helper()
	reg := prometheus.NewRegistry()
	fc := clock.NewFakeClock(invoicetest.Epoch)
	s, err := New(Params{
		Log:        zap.NewNop(),
		InvoiceSvc: svc,
		GenID:      invoicetest.NewNode(t),
		Clock:      fc,
		Config:     cfg,
		Metrics:    obsmetrics.NewSchedulerMetrics(reg, obsmetrics.Config{ServiceName: "invoicer", Environment: "test"}),
	})
	require.NoError(t, err)
	return s, reg, fc
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{JobTimeout: 5 * time.Minute}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)

	provided := ProvideConfig(
		config.Config{SchedulerInterval: 10 * time.Second},
		config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig()),
	)
	assert.Equal(t, 10*time.Second, provided.RunInterval)
	assert.Equal(t, 100, provided.BatchSize)
}

func TestMarkOverdueJobDrainsFullBatches(t *testing.T) {
	svc := &mockInvoiceSvc{}
	svc.On("MarkOverdue", invoicetest.Epoch, 2).Return(2, nil).Twice()
	svc.On("MarkOverdue", invoicetest.Epoch, 2).Return(1, nil).Once()

	s, reg, _ := newTestScheduler(t, svc, Config{BatchSize: 2})
	require.NoError(t, s.RunOnce(context.Background()))

	svc.AssertNumberOfCalls(t, "MarkOverdue", 3)
	assert.Equal(t, 5.0, counterValue(t, reg, "invoicer_scheduler_batch_processed_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "invoicer_scheduler_job_runs_total"))
}

func TestRunOnceReportsJobErrors(t *testing.T) {
	svc := &mockInvoiceSvc{}
	svc.On("MarkOverdue", mock.Anything, mock.Anything).Return(0, errors.New("connection reset")).Once()

	s, reg, _ := newTestScheduler(t, svc, Config{})
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark_overdue")
	assert.Equal(t, 1.0, counterValue(t, reg, "invoicer_scheduler_job_errors_total"))
}

func TestRunOnceTreatsTimeoutAsSoft(t *testing.T) {
	svc := &mockInvoiceSvc{}
	svc.On("MarkOverdue", mock.Anything, mock.Anything).Return(0, context.DeadlineExceeded).Once()

	s, reg, _ := newTestScheduler(t, svc, Config{})
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1.0, counterValue(t, reg, "invoicer_scheduler_job_timeouts_total"))
}

func TestRunOnceSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	svc := &mockInvoiceSvc{}
	s, reg, _ := newTestScheduler(t, svc, Config{})
	locker := &fakeLocker{acquired: false}
	s.locker = locker

	require.NoError(t, s.RunOnce(context.Background()))

	svc.AssertNotCalled(t, "MarkOverdue", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"scheduler:mark_overdue"}, locker.locked)
	assert.Empty(t, locker.released)
	assert.Equal(t, 1.0, counterValue(t, reg, "invoicer_scheduler_batch_deferred_total"))
}

func TestRunOnceReleasesLease(t *testing.T) {
	svc := &mockInvoiceSvc{}
	svc.On("MarkOverdue", mock.Anything, mock.Anything).Return(0, nil).Once()
	s, _, _ := newTestScheduler(t, svc, Config{})
	locker := &fakeLocker{acquired: true}
	s.locker = locker

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"scheduler:mark_overdue|token-1"}, locker.released)
}

func TestRunOnceRunsUnguardedWhenLockBackendFails(t *testing.T) {
	svc := &mockInvoiceSvc{}
	svc.On("MarkOverdue", mock.Anything, mock.Anything).Return(0, nil).Once()
	s, _, _ := newTestScheduler(t, svc, Config{})
	s.locker = &fakeLocker{err: errors.New("redis: connection refused")}

	require.NoError(t, s.RunOnce(context.Background()))
	svc.AssertNumberOfCalls(t, "MarkOverdue", 1)
}

func TestDisabledJobDoesNotRun(t *testing.T) {
	svc := &mockInvoiceSvc{}
	s, _, _ := newTestScheduler(t, svc, Config{EnabledJobs: []string{"something_else"}})

	assert.False(t, s.isJobEnabled(JobMarkOverdue))
	require.NoError(t, s.RunOnce(context.Background()))
	svc.AssertNotCalled(t, "MarkOverdue", mock.Anything, mock.Anything)

	s.cfg.EnabledJobs = []string{" MARK_OVERDUE "}
	assert.True(t, s.isJobEnabled(JobMarkOverdue))
}

func TestMarkOverdueAgainstDatabase(t *testing.T) {
	db := invoicetest.NewDB(t)
	const businessID = snowflake.ID(100)
	invoicetest.SeedBusiness(t, db, businessID, "INV", 1)
	invoicetest.SeedClient(t, db, businessID, snowflake.ID(200), "Globex Corp")

	issue := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	insert := func(id snowflake.ID, number string, status invoicedomain.InvoiceStatus) {
		require.NoError(t, db.Create(&invoicedomain.Invoice{
			ID:                 id,
			BusinessID:         businessID,
			ClientID:           snowflake.ID(200),
			InvoiceNumber:      number,
			Sequence:           int64(id),
			Status:             status,
			Currency:           "USD",
			ExchangeRateToBase: decimal.NewFromInt(1),
			Subtotal:           10000,
			TaxRate:            decimal.Zero,
			DiscountType:       invoicedomain.DiscountNone,
			DiscountValue:      decimal.Zero,
			Total:              10000,
			IssueDate:          issue,
			DueDate:            due,
			Version:            1,
			CreatedAt:          invoicetest.Epoch,
			UpdatedAt:          invoicetest.Epoch,
		}).Error)
	}
	insert(1, "INV-2024-00001", invoicedomain.InvoiceStatusSent)
	insert(2, "INV-2024-00002", invoicedomain.InvoiceStatusViewed)
	insert(3, "INV-2024-00003", invoicedomain.InvoiceStatusDraft)

	fc := clock.NewFakeClock(invoicetest.Epoch)
	svc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  invoicetest.NewNode(t),
		Clock:  fc,
		Config: config.NewStaticInvoicingConfigHolder(config.DefaultInvoicingConfig()),
		Repo:   invoicerepository.Provide(),
	})
	s, _, _ := newTestScheduler(t, svc, Config{BatchSize: 10})
	s.clock = fc

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []invoicedomain.InvoiceStatus{"sent", "viewed", "draft"}, statuses(t, db))

	accel := schedtesting.NewTimeAccelerator(db)
	require.NoError(t, accel.MakePastDue(context.Background(), 1, fc.Now()))
	require.NoError(t, accel.MakePastDue(context.Background(), 3, fc.Now()))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []invoicedomain.InvoiceStatus{"overdue", "viewed", "draft"}, statuses(t, db))

	fc.Advance(48 * time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []invoicedomain.InvoiceStatus{"overdue", "overdue", "draft"}, statuses(t, db))
}
