package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresInOrder(t *testing.T) {
	s := NewScheduler()
	var fired []string

	s.After(30*time.Millisecond, func() { fired = append(fired, "b") })
	s.After(10*time.Millisecond, func() { fired = append(fired, "a") })
	s.After(100*time.Millisecond, func() { fired = append(fired, "c") })

	s.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, 2, s.Pending())

	s.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestTaskStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	calls := 0
	task := s.After(10*time.Millisecond, func() { calls++ })

	assert.Equal(t, 10*time.Millisecond, task.TimeLeft())
	assert.True(t, task.Stop())
	assert.False(t, task.Stop())
	assert.Zero(t, task.TimeLeft())

	s.Advance(time.Second)
	assert.Zero(t, calls)

	var nilTask *Task
	assert.False(t, nilTask.Stop())
	assert.False(t, nilTask.Active())
}

func TestTaskScheduledFromCallbackWaits(t *testing.T) {
	s := NewScheduler()
	var fired []int

	s.After(0, func() {
		fired = append(fired, 1)
		s.After(0, func() { fired = append(fired, 2) })
	})

	s.Advance(time.Millisecond)
	assert.Equal(t, []int{1}, fired)
	assert.Equal(t, 1, s.Pending())

	s.Advance(time.Millisecond)
	assert.Equal(t, []int{1, 2}, fired)
}

func TestStoppedTaskCannotFireAfterExpiry(t *testing.T) {
	s := NewScheduler()
	calls := 0
	task := s.After(5*time.Millisecond, func() { calls++ })

	s.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.False(t, task.Stop())
	s.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, calls)
}
