package courses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	require.NoError(t, ValidatePath("week_1"))
	require.NoError(t, ValidatePath("week_1.assignment_2"))
	require.NoError(t, ValidatePath("a.b.c.d"))

	assert.Error(t, ValidatePath(""))
	assert.Error(t, ValidatePath("Week1"))
	assert.Error(t, ValidatePath("week 1"))
	assert.Error(t, ValidatePath("week-1"))
	assert.Error(t, ValidatePath("week_1."))
	assert.Error(t, ValidatePath(".week_1"))
	assert.Error(t, ValidatePath("a..b"))
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "", ParentPath("week_1"))
	assert.Equal(t, "week_1", ParentPath("week_1.assignment_2"))
	assert.Equal(t, "a.b", ParentPath("a.b.c"))
}

func TestIsDescendant(t *testing.T) {
	assert.True(t, IsDescendant("week_1.assignment_2", "week_1"))
	assert.True(t, IsDescendant("a.b.c", "a.b"))
	assert.False(t, IsDescendant("week_1", "week_1"))
	assert.False(t, IsDescendant("week_10", "week_1"))
}
