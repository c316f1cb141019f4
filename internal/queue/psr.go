package queue

import (
	"time"
)

// PSRRequest is an outgoing Partial Source Request: "which of these byte
// ranges do you have for this TTH", per spec.md §4.5.7.
type PSRRequest struct {
	TTH     string
	Ranges  []Segment
}

// PSRReply is what AnswerPartialSourceRequest and the requester's handler
// both produce: the subset of Ranges the answering side actually has.
type PSRReply struct {
	TTH    string
	HasAny bool
	Ranges []Segment
}

// AnswerPartialSourceRequest implements the SPEC_FULL responder side of
// PSR/PBD: given an incoming request for tth, report which of the
// requested ranges this client currently has finished, so the asker can
// add us as a partial source without a full PBD broadcast round-trip.
// Grounded on PartialFileSharingManager.cpp's getPartialInfo.
func (m *Manager) AnswerPartialSourceRequest(req PSRRequest) PSRReply {
	files, ok := m.filesByTTHSnapshot(req.TTH)
	if !ok || len(files) == 0 {
		return PSRReply{TTH: req.TTH}
	}
	f := files[0]
	done := f.DoneSegments()

	reply := PSRReply{TTH: req.TTH}
	for _, want := range req.Ranges {
		for _, have := range done {
			if have.Start <= want.Start && want.End() <= have.End() {
				reply.Ranges = append(reply.Ranges, want)
				reply.HasAny = true
				break
			}
		}
	}
	return reply
}

func (m *Manager) filesByTTHSnapshot(tth string) ([]*QueueFile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files, ok := m.filesByTTH[tth]
	return files, ok
}

// NeedsSearch reports whether file is due for an alternate-source search:
// it has no un-bad, online source able to complete it, and its last search
// was at least minGap ago (spec.md §4.5.9's alternate-source scheduling,
// implemented here as a check of each source's LastSearchTick; the min-heap
// ordering by LastSearchTick lives in the caller that batches many files
// per tick, e.g. internal/search).
func (m *Manager) NeedsSearch(file *QueueFile, minGap time.Duration, now time.Time) bool {
	if file.IsComplete() {
		return false
	}
	hasGoodSource := false
	for _, src := range file.Sources() {
		src.mu.Lock()
		bad := src.BadSource
		online := src.Online
		lastSearch := src.LastSearchTick
		src.mu.Unlock()
		if !bad && online {
			hasGoodSource = true
		}
		if now.Sub(lastSearch) < minGap {
			return false
		}
	}
	return !hasGoodSource
}
