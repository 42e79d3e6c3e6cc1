package scheduler

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/config"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config controls sweep intervals, batch sizes and the discrepancy threshold.
type Config struct {
	RunInterval          time.Duration
	BatchSize            int
	DiscrepancyThreshold decimal.Decimal
	EnabledJobs          []string
	LockTTL              time.Duration
	JobTimeout           time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:          5 * time.Minute,
		BatchSize:            50,
		DiscrepancyThreshold: decimal.NewFromInt(10),
		LockTTL:              2 * time.Minute,
		JobTimeout:           30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.DiscrepancyThreshold.IsNegative() {
		c.DiscrepancyThreshold = defaults.DiscrepancyThreshold
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:          cfg.Scheduler.RunInterval,
		BatchSize:            cfg.Scheduler.BatchSize,
		DiscrepancyThreshold: decimal.NewFromFloat(cfg.Scheduler.DiscrepancyThreshold),
		EnabledJobs:          cfg.Scheduler.EnabledJobs,
		LockTTL:              cfg.Scheduler.LockTTL,
	}.withDefaults()
}
