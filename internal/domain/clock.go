package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for batch reports. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time of the package clock.
func Now() time.Time {
	return clock.Now()
}

// StartReport opens a BatchReport stamped with the current time.
func StartReport(runID, source string) BatchReport {
	return BatchReport{
		RunID:     runID,
		Source:    source,
		StartedAt: clock.Now(),
		Dropped:   make(map[DropReason]int),
	}
}

// Finish records the outcome of the run and stamps the finish time.
func (r *BatchReport) Finish(read, written int, dropped map[DropReason]int) {
	r.Read = read
	r.Written = written
	for reason, n := range dropped {
		r.Dropped[reason] += n
	}
	r.FinishedAt = clock.Now()
}

// Duration is the wall time between start and finish.
func (r BatchReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
