package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/invoicer/internal/invoice/format"
	"github.com/spf13/viper"
)

// InvoicingConfig holds tunables that can change without a restart.
type InvoicingConfig struct {
	NumberTemplate  string          `mapstructure:"numberTemplate"`
	DefaultDueDays  int             `mapstructure:"defaultDueDays"`
	DefaultCurrency string          `mapstructure:"defaultCurrency"`
	Allocator       AllocatorConfig `mapstructure:"allocator"`
	Overdue         OverdueConfig   `mapstructure:"overdue"`
}

type AllocatorConfig struct {
	MaxAttempts int           `mapstructure:"maxAttempts"`
	BaseBackoff time.Duration `mapstructure:"baseBackoff"`
	MaxBackoff  time.Duration `mapstructure:"maxBackoff"`
}

type OverdueConfig struct {
	BatchSize int `mapstructure:"batchSize"`
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		NumberTemplate:  format.DefaultInvoiceNumberTemplate,
		DefaultDueDays:  30,
		DefaultCurrency: "USD",
		Allocator: AllocatorConfig{
			MaxAttempts: 5,
			BaseBackoff: 20 * time.Millisecond,
			MaxBackoff:  500 * time.Millisecond,
		},
		Overdue: OverdueConfig{
			BatchSize: 100,
		},
	}
}

type InvoicingConfigHolder struct {
	current atomic.Value // holds InvoicingConfig
}

// NewStaticInvoicingConfigHolder wraps a fixed config, mainly for tests.
func NewStaticInvoicingConfigHolder(cfg InvoicingConfig) *InvoicingConfigHolder {
	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewInvoicingConfigHolder() (*InvoicingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/invoicer")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicingConfig()
	v.SetDefault("invoicing.numberTemplate", defaults.NumberTemplate)
	v.SetDefault("invoicing.defaultDueDays", defaults.DefaultDueDays)
	v.SetDefault("invoicing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("invoicing.allocator.maxAttempts", defaults.Allocator.MaxAttempts)
	v.SetDefault("invoicing.allocator.baseBackoff", defaults.Allocator.BaseBackoff)
	v.SetDefault("invoicing.allocator.maxBackoff", defaults.Allocator.MaxBackoff)
	v.SetDefault("invoicing.overdue.batchSize", defaults.Overdue.BatchSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg InvoicingConfig
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateInvoicingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticInvoicingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicingConfig
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Printf("[invoicing-config] reload failed: %v", err)
			return
		}
		if err := ValidateInvoicingConfig(updated); err != nil {
			log.Printf("[invoicing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[invoicing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *InvoicingConfigHolder) Get() InvoicingConfig {
	return h.current.Load().(InvoicingConfig)
}

func ValidateInvoicingConfig(cfg InvoicingConfig) error {
	if err := format.ValidateTemplate(cfg.NumberTemplate); err != nil {
		return fmt.Errorf("invoicing.numberTemplate: %w", err)
	}
	if cfg.DefaultDueDays < 0 {
		return errors.New("invoicing.defaultDueDays cannot be negative")
	}
	if cfg.Allocator.MaxAttempts < 1 {
		return errors.New("invoicing.allocator.maxAttempts must be at least 1")
	}
	if cfg.Allocator.BaseBackoff <= 0 || cfg.Allocator.MaxBackoff < cfg.Allocator.BaseBackoff {
		return errors.New("invoicing.allocator backoff must satisfy 0 < baseBackoff <= maxBackoff")
	}
	if cfg.Overdue.BatchSize < 1 {
		return errors.New("invoicing.overdue.batchSize must be at least 1")
	}
	return nil
}
