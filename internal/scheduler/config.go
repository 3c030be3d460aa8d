package scheduler

import (
	"time"

	"github.com/smallbiznis/invoicer/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	// EnabledJobs limits the jobs this process runs. Empty runs all of them.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   100,
		JobTimeout:  30 * time.Second,
		LockTTL:     2 * time.Minute,
	}
}

// ProvideConfig derives scheduler settings from the app and invoicing config.
func ProvideConfig(cfg config.Config, invoicing *config.InvoicingConfigHolder) Config {
	c := Config{RunInterval: cfg.SchedulerInterval}
	if invoicing != nil {
		c.BatchSize = invoicing.Get().Overdue.BatchSize
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// The lease must outlive a run that hits its timeout.
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	return c
}
