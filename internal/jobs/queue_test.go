package jobs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 60*time.Second, backoffDelay(1, 60, 3600))
	assert.Equal(t, 240*time.Second, backoffDelay(2, 60, 3600))
	assert.Equal(t, 540*time.Second, backoffDelay(3, 60, 3600))

	// Capped at the maximum.
	assert.Equal(t, 3600*time.Second, backoffDelay(10, 60, 3600))
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short"))

	long := strings.Repeat("x", 600)
	assert.Len(t, truncateError(long), 500)
}

func TestDefaultQueueConfig(t *testing.T) {
	cfg := DefaultQueueConfig("workflows")
	assert.Equal(t, "workflows", cfg.TableName)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 10, cfg.BatchSize)
}
