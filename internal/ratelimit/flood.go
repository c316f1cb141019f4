// Package ratelimit implements spec.md §5's flood control and throughput
// limiting: a sliding-window FloodCounter (grounded on FloodCounter.h) and
// global upload/download token buckets built on golang.org/x/time/rate, the
// library already exercised for HTTP client throttling elsewhere in the
// example pack.
package ratelimit

import (
	"sync"
	"time"
)

// Severity is FloodCounter's verdict for one addOne() call.
type Severity int

const (
	FloodOK Severity = iota
	FloodMinor
	FloodSevere
)

// FloodCounter counts events per key (typically a remote IP) in a sliding
// window and classifies the rate, mirroring FloodCounter.h's minor/severe
// thresholds used to throttle connection attempts and search floods.
type FloodCounter struct {
	mu     sync.Mutex
	window time.Duration
	minor  int
	severe int

	events map[string][]time.Time
}

func NewFloodCounter(window time.Duration, minorThreshold, severeThreshold int) *FloodCounter {
	return &FloodCounter{
		window: window,
		minor:  minorThreshold,
		severe: severeThreshold,
		events: make(map[string][]time.Time),
	}
}

// AddOne records one event for key at now and returns the resulting
// severity. Entries older than the window are pruned first.
func (f *FloodCounter) AddOne(key string, now time.Time) Severity {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := now.Add(-f.window)
	evts := f.events[key]
	kept := evts[:0]
	for _, t := range evts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	f.events[key] = kept

	switch {
	case len(kept) >= f.severe:
		return FloodSevere
	case len(kept) >= f.minor:
		return FloodMinor
	default:
		return FloodOK
	}
}

// Remove drops all tracked events for key, so they no longer count against
// future flood checks. internal/connmgr does not call it.
func (f *FloodCounter) Remove(key string) {
	f.mu.Lock()
	delete(f.events, key)
	f.mu.Unlock()
}

// Sweep prunes stale keys with no events left in the window, called
// periodically by the owning connmgr loop to bound memory.
func (f *FloodCounter) Sweep(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := now.Add(-f.window)
	for key, evts := range f.events {
		kept := evts[:0]
		for _, t := range evts {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(f.events, key)
		} else {
			f.events[key] = kept
		}
	}
}
