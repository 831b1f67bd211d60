package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	assert.Equal(t, 0, ComputeProgress(0, 0))
	assert.Equal(t, 0, ComputeProgress(0, 5))
	assert.Equal(t, 100, ComputeProgress(5, 5))
	assert.Equal(t, 50, ComputeProgress(2, 4))
	// Deleting one of the two completed tasks out of four: 1/3 rounds to 33.
	assert.Equal(t, 33, ComputeProgress(1, 3))
	assert.Equal(t, 67, ComputeProgress(2, 3))
	// Negative totals are treated as empty projects.
	assert.Equal(t, 0, ComputeProgress(1, -1))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleOwner.Valid())
	assert.True(t, RoleMember.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestTaskStatusValid(t *testing.T) {
	assert.True(t, StatusTodo.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, TaskStatus("done").Valid())
}

func TestTaskPriorityValid(t *testing.T) {
	assert.True(t, PriorityLow.Valid())
	assert.True(t, PriorityMedium.Valid())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, TaskPriority("urgent").Valid())
}

func TestTaskUpdateEmpty(t *testing.T) {
	assert.True(t, (&TaskUpdate{}).Empty())

	title := "rename"
	assert.False(t, (&TaskUpdate{Title: &title}).Empty())

	assert.False(t, (&TaskUpdate{ClearAssignee: true}).Empty())
	assert.False(t, (&TaskUpdate{ClearDueDate: true}).Empty())
	assert.False(t, (&TaskUpdate{ClearMilestone: true}).Empty())
}
