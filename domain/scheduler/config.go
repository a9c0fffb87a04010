package scheduler

import (
	"os"
	"strconv"
	"time"
)

// Config holds the scheduler settings.
type Config struct {
	Enabled bool

	// SessionCleanupInterval controls how often terminal sessions are purged.
	SessionCleanupInterval time.Duration

	// StaleWorkflowInterval controls how often abandoned workflow runs are
	// reset to pending.
	StaleWorkflowInterval time.Duration
}

// NewConfig reads the scheduler settings from the environment.
func NewConfig() *Config {
	return &Config{
		Enabled:                getEnvBool("SCHEDULER_ENABLED", true),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour),
		StaleWorkflowInterval:  getEnvDuration("STALE_WORKFLOW_INTERVAL", 10*time.Minute),
	}
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
