// Package config provides governance engine configuration and the
// graduation criteria table.
package config

import (
	"fmt"
)

// EngineConfig holds tunables for the governance engine. It carries no
// infrastructure addresses; those belong to the process entrypoint.
type EngineConfig struct {
	// CacheMaxEntries bounds the decision cache. Zero means unbounded.
	CacheMaxEntries int `json:"cache_max_entries" yaml:"cache_max_entries"`

	// DefaultMinEpisodes is used when graduation criteria omit a minimum.
	DefaultMinEpisodes int `json:"default_min_episodes" yaml:"default_min_episodes"`

	// MonitorPollSeconds is the interval between condition monitor sweeps.
	MonitorPollSeconds int `json:"monitor_poll_seconds" yaml:"monitor_poll_seconds"`

	// RollingWindowSeconds sizes the api_metrics rolling aggregation window.
	RollingWindowSeconds int `json:"rolling_window_seconds" yaml:"rolling_window_seconds"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultEngineConfig returns an EngineConfig with default values.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		CacheMaxEntries:      10000,
		DefaultMinEpisodes:   10,
		MonitorPollSeconds:   60,
		RollingWindowSeconds: 300,
		LogLevel:             "info",
	}
}

// Validate checks the configuration for nonsensical values.
func (c *EngineConfig) Validate() error {
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must be >= 0, got %d", c.CacheMaxEntries)
	}
	if c.DefaultMinEpisodes < 0 {
		return fmt.Errorf("default_min_episodes must be >= 0, got %d", c.DefaultMinEpisodes)
	}
	if c.MonitorPollSeconds <= 0 {
		return fmt.Errorf("monitor_poll_seconds must be > 0, got %d", c.MonitorPollSeconds)
	}
	if c.RollingWindowSeconds <= 0 {
		return fmt.Errorf("rolling_window_seconds must be > 0, got %d", c.RollingWindowSeconds)
	}
	return nil
}
