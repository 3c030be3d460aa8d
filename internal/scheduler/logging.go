package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/invoicer/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one pass of a sweep job for its start and finish log lines.
type jobRun struct {
	job        string
	runID      string
	batchSize  int
	startedAt  time.Time
	batches    int
	processed  int
	errorCount int
}

type jobRunKey struct{}

// AddProcessed records one batch and the rows it touched.
func (r *jobRun) AddProcessed(count int) {
	if r == nil {
		return
	}
	r.batches++
	if count > 0 {
		r.processed += count
	}
}

func (r *jobRun) IncError() {
	if r != nil {
		r.errorCount++
	}
}

// ensureJobRun attaches a run to ctx unless one is already present. The
// returned bool is true for the caller that created the run and therefore
// owns its log lines.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && run != nil {
		return ctx, run, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	return context.WithValue(ctx, jobRunKey{}, run), run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("batches", run.batches),
		zap.Int("processed_count", run.processed),
		zap.Int("error_count", run.errorCount),
	}
	if run.errorCount > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	if run.processed == 0 {
		s.logger(ctx).Debug("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}
