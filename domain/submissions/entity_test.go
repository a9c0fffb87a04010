package submissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalFailure(t *testing.T) {
	assert.False(t, StatusScheduled.TerminalFailure())
	assert.False(t, StatusRunning.TerminalFailure())
	assert.False(t, StatusCompleted.TerminalFailure())
	assert.True(t, StatusFailed.TerminalFailure())
	assert.True(t, StatusCrashed.TerminalFailure())
}
