package queue

import (
	"sort"
	"time"
)

// AutoPriorityMode selects how RunAutoPriority ranks bundles against each
// other, per spec.md §4.5.8.
type AutoPriorityMode int

const (
	// ModeProgress assigns each file's priority as a step function of its
	// own percent done; a bundle's priority is the average of its files.
	ModeProgress AutoPriorityMode = iota
	// ModeBalanced scores every auto-prio bundle on a speed/sources blend
	// and splits the ranking into three equal HIGH/NORMAL/LOW groups.
	ModeBalanced
)

// RunAutoPriority recomputes Priority for every bundle with AutoPriority
// set, called on AutoPriorityInterval. recentWindow is accepted for the
// caller's scheduling convenience but ModeBalanced's own grouping, per
// spec.md §4.5.8, depends only on the speed/sources score, not on bundle
// age.
func (m *Manager) RunAutoPriority(mode AutoPriorityMode, recentWindow time.Duration, now time.Time) {
	bundles := m.Bundles()
	var autoBundles []*Bundle
	for _, b := range bundles {
		b.mu.RLock()
		auto := b.AutoPriority && b.Priority != PriorityPausedForce
		b.mu.RUnlock()
		if auto {
			autoBundles = append(autoBundles, b)
		}
	}
	if len(autoBundles) == 0 {
		return
	}

	switch mode {
	case ModeProgress:
		assignProgressPriorities(autoBundles)
	case ModeBalanced:
		assignBalancedPriorities(autoBundles)
	}
}

// progressPriorityForPct implements spec.md §4.5.8's progress-mode step
// function: <20% -> LOW, 20-50% -> NORMAL, 50-80% -> HIGH, >=80% -> HIGHEST.
func progressPriorityForPct(pct float64) Priority {
	switch {
	case pct < 0.2:
		return PriorityLow
	case pct < 0.5:
		return PriorityNormal
	case pct < 0.8:
		return PriorityHigh
	default:
		return PriorityHighest
	}
}

func assignProgressPriorities(bundles []*Bundle) {
	for _, b := range bundles {
		b.mu.RLock()
		files := make([]*QueueFile, len(b.Files))
		copy(files, b.Files)
		b.mu.RUnlock()

		if len(files) == 0 {
			continue
		}

		sum := 0
		for _, f := range files {
			pct := 0.0
			if f.Size > 0 {
				pct = float64(f.BytesDone()) / float64(f.Size)
			}
			p := progressPriorityForPct(pct)
			f.mu.Lock()
			f.Priority = p
			f.mu.Unlock()
			sum += int(p)
		}
		avg := Priority(sum / len(files))

		b.mu.Lock()
		b.Priority = avg
		b.mu.Unlock()
	}
}

// assignBalancedPriorities implements spec.md §4.5.8's balanced-mode scoring:
// points = 100*(speed/max_speed) + 100*(sources/max_sources), ranked and
// split into three equal groups mapped to HIGH/NORMAL/LOW. Bundles are left
// untouched if every score is zero (no speed or source signal to rank on).
func assignBalancedPriorities(bundles []*Bundle) {
	type scored struct {
		b       *Bundle
		speed   float64
		sources int
	}
	scoredList := make([]scored, len(bundles))
	var maxSpeed float64
	var maxSources int
	for i, b := range bundles {
		speed := b.SpeedBps()
		sources := b.SourceCount()
		scoredList[i] = scored{b, speed, sources}
		if speed > maxSpeed {
			maxSpeed = speed
		}
		if sources > maxSources {
			maxSources = sources
		}
	}
	if maxSpeed == 0 && maxSources == 0 {
		return
	}

	points := make([]float64, len(scoredList))
	for i, s := range scoredList {
		var p float64
		if maxSpeed > 0 {
			p += 100 * (s.speed / maxSpeed)
		}
		if maxSources > 0 {
			p += 100 * (float64(s.sources) / float64(maxSources))
		}
		points[i] = p
	}

	order := make([]int, len(scoredList))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return points[order[i]] > points[order[j]] })

	n := len(order)
	groupSize := (n + 2) / 3
	for rank, idx := range order {
		group := rank / groupSize
		var pr Priority
		switch group {
		case 0:
			pr = PriorityHigh
		case 1:
			pr = PriorityNormal
		default:
			pr = PriorityLow
		}
		b := scoredList[idx].b
		b.mu.Lock()
		b.Priority = pr
		b.mu.Unlock()
	}
}

// SetAutoPriority toggles a bundle's auto-priority flag. Per spec.md §8's
// boundary behavior, switching auto-priority on while the bundle sits at
// PAUSED forces it to LOW immediately rather than leaving it paused and
// unassignable.
func (b *Bundle) SetAutoPriority(auto bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AutoPriority = auto
	if auto && b.Priority == PriorityPaused {
		b.Priority = PriorityLow
	}
}
