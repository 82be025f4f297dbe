package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piaoger/fisher/internal/hook"
)

func queuedJob(name string, priority int, seq uint64) *Job {
	return &Job{
		ID:       name,
		Hook:     &hook.Hook{Name: name},
		Priority: priority,
		seq:      seq,
	}
}

func TestQueuePriorityOrder(t *testing.T) {
	var q jobQueue
	q.push(queuedJob("low", 0, 0))
	q.push(queuedJob("high", 10, 1))
	q.push(queuedJob("mid", 5, 2))

	assert.Equal(t, "high", q.pop().ID)
	assert.Equal(t, "mid", q.pop().ID)
	assert.Equal(t, "low", q.pop().ID)
	assert.Nil(t, q.pop())
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	var q jobQueue
	q.push(queuedJob("first", 3, 0))
	q.push(queuedJob("second", 3, 1))
	q.push(queuedJob("third", 3, 2))

	assert.Equal(t, "first", q.pop().ID)
	assert.Equal(t, "second", q.pop().ID)
	assert.Equal(t, "third", q.pop().ID)
}

func TestQueueNegativePriority(t *testing.T) {
	var q jobQueue
	q.push(queuedJob("background", -5, 0))
	q.push(queuedJob("normal", 0, 1))

	assert.Equal(t, "normal", q.pop().ID)
	assert.Equal(t, "background", q.pop().ID)
}
