package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusTransitions(t *testing.T) {
	all := []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed}

	legal := map[TaskStatus]map[TaskStatus]bool{
		TaskStatusPending: {TaskStatusRunning: true},
		TaskStatusRunning: {TaskStatusCompleted: true, TaskStatusFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			expected := legal[from][to]
			assert.Equal(t, expected, from.CanTransition(to), "%s -> %s", from, to)

			err := ValidateTransition(from, to)
			if expected {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.Error(t, err, "%s -> %s", from, to)
			}
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	assert.False(t, TaskStatusPending.Terminal())
	assert.False(t, TaskStatusRunning.Terminal())
	assert.True(t, TaskStatusCompleted.Terminal())
	assert.True(t, TaskStatusFailed.Terminal())
}
