package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/invoicer/internal/audit/domain"
	"github.com/smallbiznis/invoicer/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	obscontext "github.com/smallbiznis/invoicer/internal/observability/context"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobMarkOverdue = "mark_overdue"

	resourceInvoices = "invoices"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type leaseLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	InvoiceSvc invoicedomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config                       `optional:"true"`
	Locker     *ratelimit.Locker            `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
	locker     leaseLocker
	metrics    *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.InvoiceSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
		metrics:    p.Metrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeScheduler), name)
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := s.withLease(ctx, name, fn)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout: the next tick picks up the remainder.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// withLease runs fn only while this replica holds the job's lease. Without a
// locker every replica runs the job; the conditional status update keeps that
// safe, just wasteful.
func (s *Scheduler) withLease(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	token, acquired, err := s.locker.TryLock(ctx, "scheduler:"+name, s.cfg.LockTTL)
	if err != nil {
		s.logger(ctx).Warn("scheduler lease unavailable, running unguarded", zap.String("job", name), zap.Error(err))
		return fn(ctx)
	}
	if !acquired {
		s.metrics.AddBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld, 1)
		s.logger(ctx).Debug("scheduler lease held elsewhere", zap.String("job", name))
		return nil
	}
	defer func() {
		// Release on a fresh context so a timed out run still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, "scheduler:"+name, token); err != nil {
			s.logger(ctx).Warn("failed to release scheduler lease", zap.String("job", name), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobMarkOverdue, s.isJobEnabled(JobMarkOverdue), func(ctx context.Context) error {
			return s.runJob(ctx, JobMarkOverdue, s.cfg.BatchSize, s.cfg.JobTimeout, s.MarkOverdueJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// MarkOverdueJob drains past-due invoices in batches. A short batch means the
// backlog is empty or the rest changed concurrently; either way the next tick
// retries.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobMarkOverdue, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		marked, err := s.invoiceSvc.MarkOverdue(ctx, now, s.cfg.BatchSize)
		run.AddProcessed(marked)
		s.metrics.AddBatchProcessed(JobMarkOverdue, resourceInvoices, marked)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.mark_overdue.failed", err,
				zap.Int("marked", marked),
			)
			return err
		}
		if marked < s.cfg.BatchSize {
			return nil
		}
	}
}
