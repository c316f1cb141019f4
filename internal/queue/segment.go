package queue

import "sort"

// NextSegment implements spec.md §4.5.4's segment selection: given a file's
// coalesced done ranges, its other in-flight assignments, and what the
// candidate source is known to have, pick the next range to hand to a new
// connection from that source.
//
// Algorithm, grounded on QueueManager::getNextSegment's block-aligned
// selection generalized to our simpler fixed segmentSize model: build the
// complement of (done ∪ assigned) within [0, fileSize), intersect with the
// source's coverage, and take the first gap up to segmentSize bytes. If no
// un-assigned gap exists but the file isn't finished, and allowOverlap is
// set (spec.md's "race a slow source" behavior), re-offer the largest
// currently-assigned-but-unfinished range as an overlapped segment.
func NextSegment(fileSize int64, done []Segment, assigned []Segment, src *Source, segmentSize int64, allowOverlap bool) (Segment, bool) {
	if src != nil {
		src.mu.Lock()
		bad := src.BadSource
		src.mu.Unlock()
		if bad {
			return Segment{}, false
		}
	}
	free := complement(fileSize, merge(append(append([]Segment{}, done...), assigned...)))

	for _, gap := range free {
		parts := []Segment{gap}
		if src != nil && src.PartialInfo != nil {
			parts = nil
			for _, have := range src.PartialInfo {
				start, end := max(gap.Start, have.Start), min(gap.End(), have.End())
				if start < end {
					parts = append(parts, Segment{Start: start, Size: end - start})
				}
			}
		}
		if len(parts) > 0 {
			seg := parts[0]
			if seg.Size > segmentSize {
				seg.Size = segmentSize
			}
			return seg, true
		}
	}

	if !allowOverlap {
		return Segment{}, false
	}

	// No unassigned gap: look for the largest assigned-but-not-done range
	// the source also covers, and overlap it.
	notDone := complement(fileSize, merge(append([]Segment{}, done...)))
	var best Segment
	haveBest := false
	for _, s := range notDone {
		for _, a := range assigned {
			if !s.Overlaps(a) {
				continue
			}
			cand := s
			if cand.Size > segmentSize {
				cand.Size = segmentSize
			}
			if src != nil && !src.HasRange(cand) {
				continue
			}
			if !haveBest || cand.Size > best.Size {
				best = cand
				haveBest = true
			}
		}
	}
	if !haveBest {
		return Segment{}, false
	}
	best.Overlapped = true
	return best, true
}

// merge coalesces overlapping/adjacent segments into a sorted, disjoint set.
func merge(segs []Segment) []Segment {
	if len(segs) == 0 {
		return nil
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End() {
			if s.End() > last.End() {
				last.Size = s.End() - last.Start
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// complement returns the gaps in [0, fileSize) not covered by the
// (already-merged-compatible) segs.
func complement(fileSize int64, segs []Segment) []Segment {
	merged := merge(segs)
	var out []Segment
	pos := int64(0)
	for _, s := range merged {
		if s.Start > pos {
			out = append(out, Segment{Start: pos, Size: s.Start - pos})
		}
		if s.End() > pos {
			pos = s.End()
		}
	}
	if pos < fileSize {
		out = append(out, Segment{Start: pos, Size: fileSize - pos})
	}
	return out
}

// MarkDone coalesces seg into f's done set, called on a successful segment
// finish (finish.go). It intentionally ignores Overlapped: two overlapped
// assignments racing to finish the same bytes both report done safely.
func (f *QueueFile) MarkDone(seg Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = merge(append(f.done, Segment{Start: seg.Start, Size: seg.Size}))
}
