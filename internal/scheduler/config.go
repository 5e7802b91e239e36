package scheduler

import (
	"time"

	"github.com/smallbiznis/karat/internal/config"
)

// Config controls scheduler intervals and job thresholds.
type Config struct {
	RunInterval time.Duration
	MaxRateAge  time.Duration
	JobTimeout  time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		MaxRateAge:  24 * time.Hour,
		JobTimeout:  30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		MaxRateAge:  cfg.Scheduler.MaxRateAge,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.MaxRateAge <= 0 {
		c.MaxRateAge = defaults.MaxRateAge
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
