package queue

import (
	"math"

	metrics "github.com/rcrowley/go-metrics"
)

// speedTickInterval is how often TickSpeeds expects to be called (by the
// caller's ticker, e.g. client.go's speed-ticking goroutine). speedAlpha is
// derived from it the way metrics.NewEWMA1/5/15 derive their alphas from a
// fixed 5s tick interval, so the EWMA settles over spec.md §3.4's "rolling
// 15 samples over >=15s" window instead of go-metrics' built-in 1/5/15
// minute windows.
const speedTickInterval = 1.0 // seconds

var speedAlpha = 1 - math.Exp(-speedTickInterval/15.0)

func newSpeedEWMA() metrics.EWMA {
	return metrics.NewEWMA(speedAlpha)
}

// AddSpeedSample records n bytes transferred since the last tick, the way a
// download connection reports bytes read off the wire.
func (b *Bundle) AddSpeedSample(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speed == nil {
		b.speed = newSpeedEWMA()
	}
	b.speed.Update(n)
}

// TickSpeeds decays the bundle's EWMA by one sample interval. Called
// periodically (speedTickInterval apart) by the caller's ticker goroutine,
// the same way a go-metrics Meter's background goroutine calls Tick.
func (b *Bundle) TickSpeeds() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speed == nil {
		b.speed = newSpeedEWMA()
	}
	b.speed.Tick()
}

// SpeedBps returns the bundle's current rolling average download speed in
// bytes/sec, per spec.md §3.4.
func (b *Bundle) SpeedBps() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.speed == nil {
		return 0
	}
	return b.speed.Rate() / speedTickInterval
}

// SourceCount returns the number of distinct online sources across all of
// the bundle's files, used by balanced auto-priority's points formula.
func (b *Bundle) SourceCount() int {
	b.mu.RLock()
	files := make([]*QueueFile, len(b.Files))
	copy(files, b.Files)
	b.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, f := range files {
		for _, s := range f.Sources() {
			if s.Online {
				seen[s.CID.String()] = struct{}{}
			}
		}
	}
	return len(seen)
}
