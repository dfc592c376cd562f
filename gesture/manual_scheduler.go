package gesture

import (
	"sort"
	"time"
)

// ManualScheduler is a Scheduler driven by Advance, for tests and replays.
type ManualScheduler struct {
	now     time.Duration
	pending []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: s.now + d, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves time forward and fires every timer that comes due, in due order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.now += d
	sort.SliceStable(s.pending, func(i, j int) bool { return s.pending[i].at < s.pending[j].at })
	var rest []*manualTimer
	var due []*manualTimer
	for _, t := range s.pending {
		switch {
		case t.stopped:
		case t.at <= s.now:
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	s.pending = rest
	for _, t := range due {
		if t.stopped {
			continue
		}
		t.fired = true
		t.f()
	}
}

// Pending counts timers that are neither stopped nor fired.
func (s *ManualScheduler) Pending() int {
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
