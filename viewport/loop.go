package viewport

import (
	"context"
	"time"

	"tactical-grid/gesture"
)

// Loop runs posted functions one at a time on the goroutine that calls Run. Network
// callbacks and timers post into it so the viewport never needs a lock.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

func NewLoop(buffer int) *Loop {
	return &Loop{tasks: make(chan func(), buffer), done: make(chan struct{})}
}

// Post queues f. It is safe from any goroutine and drops f once Run has returned.
func (l *Loop) Post(f func()) {
	select {
	case l.tasks <- f:
	case <-l.done:
	}
}

// AfterFunc implements gesture.Scheduler. f runs on the loop, not on the timer goroutine.
func (l *Loop) AfterFunc(d time.Duration, f func()) gesture.Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

// Run executes posted functions in arrival order until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.tasks:
			f()
		}
	}
}
