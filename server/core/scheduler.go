package core

import "time"

const (
	taskActive = iota
	taskStopped
	taskFired
)

// Task is a callback waiting on the tick loop's clock.
type Task struct {
	fn        func()
	remaining time.Duration
	state     int
}

// Stop cancels the task. It returns false if the task already fired or was
// stopped; calling it again is harmless. Stop is safe on a nil task.
func (t *Task) Stop() bool {
	if t == nil || t.state != taskActive {
		return false
	}
	t.state = taskStopped
	return true
}

// Active reports whether the task is still waiting.
func (t *Task) Active() bool {
	return t != nil && t.state == taskActive
}

// TimeLeft returns the duration left before the task fires, or 0 when it is
// no longer waiting. TimeLeft is safe on a nil task.
func (t *Task) TimeLeft() time.Duration {
	if !t.Active() {
		return 0
	}
	return t.remaining
}

// Scheduler runs deferred callbacks on simulated time. It is owned by one
// tick loop and is not safe for concurrent use.
type Scheduler struct {
	tasks []*Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// After schedules fn to run once at least d of simulated time has passed.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{fn: fn, remaining: d}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock forward and runs every task that came due, in the
// order they were scheduled. Tasks scheduled by a callback wait for the next
// Advance.
func (s *Scheduler) Advance(dt time.Duration) {
	due := s.tasks
	s.tasks = nil

	var keep []*Task
	for _, t := range due {
		if t.state != taskActive {
			continue
		}
		t.remaining -= dt
		if t.remaining > 0 {
			keep = append(keep, t)
			continue
		}
		t.remaining = 0
		t.state = taskFired
		t.fn()
	}

	s.tasks = append(keep, s.tasks...)
}

// Pending returns the number of tasks still waiting.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if t.state == taskActive {
			n++
		}
	}
	return n
}
