// Package numbering allocates per-business invoice numbers.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	businessdomain "github.com/smallbiznis/invoicer/internal/business/domain"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/invoice/format"
	"github.com/smallbiznis/invoicer/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Number is an allocated invoice sequence and its rendered form.
type Number struct {
	Sequence  int64
	Formatted string
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       invoicedomain.Repository
	Businesses businessdomain.Service
	Config     *config.InvoicingConfigHolder
	Clock      clock.Clock
	Metrics    *metrics.Metrics `optional:"true"`
}

type Allocator struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       invoicedomain.Repository
	businesses businessdomain.Service
	cfg        *config.InvoicingConfigHolder
	clock      clock.Clock
	metrics    *metrics.Metrics

	wait func(ctx context.Context, d time.Duration) error
}

func New(p Params) *Allocator {
	return &Allocator{
		db:         p.DB,
		log:        p.Log.Named("invoice.numbering"),
		repo:       p.Repo,
		businesses: p.Businesses,
		cfg:        p.Config,
		clock:      p.Clock,
		metrics:    p.Metrics,
		wait:       sleepContext,
	}
}

// Allocate reserves the next sequence of businessID and renders it with the
// configured template. Only transient storage failures are retried. The
// counter update commits on its own, so a caller that later fails to persist
// the invoice leaves a gap in the sequence.
func (a *Allocator) Allocate(ctx context.Context, businessID snowflake.ID) (Number, error) {
	business, err := a.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, businessdomain.ErrNotFound) || errors.Is(err, businessdomain.ErrInvalidID) {
			return Number{}, invoicedomain.ErrBusinessNotFound
		}
		return Number{}, err
	}
	prefix, err := format.NormalizePrefix(business.InvoicePrefix)
	if err != nil {
		return Number{}, err
	}

	cfg := a.cfg.Get()
	policy := cfg.Allocator
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var seq int64
	for attempt := 1; ; attempt++ {
		seq, err = a.repo.AllocateNextNumber(ctx, a.db, businessID)
		if err == nil {
			break
		}
		if !errors.Is(err, invoicedomain.ErrTransientStorage) {
			return Number{}, err
		}
		if attempt >= maxAttempts {
			a.metrics.RecordNumberAllocationFailure(ctx, "exhausted")
			a.log.Error("invoice number allocation exhausted",
				zap.String("business_id", businessID.String()),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return Number{}, fmt.Errorf("allocate invoice number after %d attempts: %w", attempt, err)
		}

		delay := Backoff(attempt, policy.BaseBackoff, policy.MaxBackoff)
		a.metrics.RecordNumberAllocationRetry(ctx, attempt)
		a.log.Warn("retrying invoice number allocation",
			zap.String("business_id", businessID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := a.wait(ctx, delay); err != nil {
			a.metrics.RecordNumberAllocationFailure(ctx, "canceled")
			return Number{}, err
		}
	}

	formatted, err := format.FormatInvoiceNumber(cfg.NumberTemplate, prefix, a.clock.Now(), seq)
	if err != nil {
		return Number{}, err
	}
	return Number{Sequence: seq, Formatted: formatted}, nil
}

// Backoff returns base * 2^(attempt-1), capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
