// Package queue implements the segmented, resumable, multi-source download
// queue of spec.md §4.5: QueueFile/Source/Segment/Bundle, FileQueue/
// BundleQueue/UserQueue indices, segment selection and finishing, PSR/PBD
// partial-source gossip, and auto-priority.
//
// Grounded on original_source/airdcpp/QueueManager.h/.cpp for the type
// shapes and invariants, and on the teacher's piece/block decomposition
// (internal/downloader/piecedownloader, internal/piece) for the general
// shape of "a file is a set of fixed-ish-size ranges, each independently
// assignable to one connection at a time" — generalized here from
// BitTorrent's uniform pieces to DC's arbitrary-offset Segments because
// sources can join mid-download at any byte offset.
package queue

import (
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// Priority mirrors QueueItem::Priority: PAUSED and PAUSED_FORCE both disable
// assignment, but PAUSED_FORCE additionally pins the item so auto-priority
// and bundle-add demotion logic (spec.md §4.5.8, §9 open question 1) never
// raise it back up on their own.
type Priority int

const (
	PriorityPausedForce Priority = iota
	PriorityPaused
	PriorityLowest
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

// FileStatus is a QueueFile's position in the download/validation lifecycle
// (spec.md §3.3's generic `status` field, narrowed to the states §4.5.5
// actually drives the file through).
type FileStatus int

const (
	FileStatusQueued FileStatus = iota
	FileStatusValidationRunning
	FileStatusValidationError
	FileStatusCompleted
)

// BundleStatus mirrors Bundle::Status from spec.md §3.3.
type BundleStatus int

const (
	BundleStatusNew BundleStatus = iota
	BundleStatusQueued
	BundleStatusRecheck
	BundleStatusDownloaded
	BundleStatusValidationRunning
	BundleStatusValidationError
	BundleStatusCompleted
	BundleStatusShared
	BundleStatusDownloadError
	BundleStatusFailedMissing
	BundleStatusSharingFailed
)

func (s BundleStatus) String() string {
	switch s {
	case BundleStatusNew:
		return "new"
	case BundleStatusQueued:
		return "queued"
	case BundleStatusRecheck:
		return "recheck"
	case BundleStatusDownloaded:
		return "downloaded"
	case BundleStatusValidationRunning:
		return "validation_running"
	case BundleStatusValidationError:
		return "validation_error"
	case BundleStatusCompleted:
		return "completed"
	case BundleStatusShared:
		return "shared"
	case BundleStatusDownloadError:
		return "download_error"
	case BundleStatusFailedMissing:
		return "failed_missing"
	case BundleStatusSharingFailed:
		return "sharing_failed"
	default:
		return "unknown"
	}
}

// Segment is a contiguous byte range of a file, independently downloadable
// from one source connection at a time. Overlapped marks a segment that was
// speculatively double-assigned to race a slow source (spec.md §4.5.4).
type Segment struct {
	Start      int64
	Size       int64
	Overlapped bool
}

func (s Segment) End() int64 { return s.Start + s.Size }

// Overlaps reports whether s and o share any byte.
func (s Segment) Overlaps(o Segment) bool {
	return s.Start < o.End() && o.Start < s.End()
}

// Source is one user offering (all or part of) a QueueFile.
type Source struct {
	CID    adc.CID
	Online bool

	// PartialInfo holds the chunk boundaries the source reported having,
	// from a PBD/reply to PSR; nil means "assumed to have the whole file".
	PartialInfo []Segment

	BadSource   bool // set when a download from this source has failed verification
	LastSearchTick time.Time

	mu              sync.Mutex
	assignedSegments []Segment
}

func (s *Source) assign(seg Segment) {
	s.mu.Lock()
	s.assignedSegments = append(s.assignedSegments, seg)
	s.mu.Unlock()
}

func (s *Source) unassign(seg Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.assignedSegments {
		if a == seg {
			s.assignedSegments = append(s.assignedSegments[:i], s.assignedSegments[i+1:]...)
			return
		}
	}
}

func (s *Source) AssignedSegments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, len(s.assignedSegments))
	copy(out, s.assignedSegments)
	return out
}

// HasRange reports whether the source's known partial info covers seg
// entirely. A nil PartialInfo (full-file source) always covers.
func (s *Source) HasRange(seg Segment) bool {
	if s.PartialInfo == nil {
		return true
	}
	for _, have := range s.PartialInfo {
		if have.Start <= seg.Start && seg.End() <= have.End() {
			return true
		}
	}
	return false
}

// QueueFile is one file being downloaded, possibly as part of a Bundle.
type QueueFile struct {
	mu sync.RWMutex

	Token  string
	Target string // absolute final path
	Size   int64
	TTH    string

	Priority     Priority
	AutoPriority bool
	Status       FileStatus

	// HookError holds the rejection from the most recent failed
	// file_completion_hook run, per spec.md §3.3's hook_error field. Cleared
	// on a successful re-run.
	HookError *xerrors.Rejection

	sources    map[adc.CID]*Source
	done       []Segment // coalesced, non-overlapping finished ranges
	Bundle     *Bundle

	AddedTime time.Time
}

func NewQueueFile(token, target string, size int64, tth string) *QueueFile {
	return &QueueFile{
		Token:        token,
		Target:       target,
		Size:         size,
		TTH:          tth,
		Priority:     PriorityNormal,
		AutoPriority: true,
		Status:       FileStatusQueued,
		sources:      make(map[adc.CID]*Source),
		AddedTime:    time.Now(),
	}
}

func (f *QueueFile) AddSource(src *Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[src.CID] = src
}

func (f *QueueFile) RemoveSource(cid adc.CID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, cid)
}

func (f *QueueFile) Source(cid adc.CID) (*Source, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sources[cid]
	return s, ok
}

func (f *QueueFile) Sources() []*Source {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out
}

// BytesDone sums the coalesced done ranges.
func (f *QueueFile) BytesDone() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var total int64
	for _, s := range f.done {
		total += s.Size
	}
	return total
}

func (f *QueueFile) IsComplete() bool {
	return f.BytesDone() >= f.Size
}

// DoneSegments returns a copy of the coalesced finished ranges.
func (f *QueueFile) DoneSegments() []Segment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Segment, len(f.done))
	copy(out, f.done)
	return out
}

// Bundle groups one or more QueueFiles added together (a directory, or a
// single-file bundle for loose files), per spec.md §3.3's BundleQueue.
type Bundle struct {
	mu sync.RWMutex

	Token  string
	Target string // directory (or file, for single-file bundles)
	Files  []*QueueFile

	Priority     Priority
	AutoPriority bool
	Status       BundleStatus

	// HookError holds the rejection from the most recent failed
	// bundle_completion_hook run, mirroring QueueFile.HookError.
	HookError *xerrors.Rejection

	AddedTime     time.Time
	FinishedTime  time.Time
	lastSpeedSample time.Time

	// speed is a rolling EWMA of bytes/sec, fed by AddSpeedSample and decayed
	// by TickSpeeds; see speed.go. Lazily created so a Bundle with no transfer
	// activity yet doesn't carry a live metrics.EWMA for nothing.
	speed metrics.EWMA
}

func NewBundle(token, target string) *Bundle {
	return &Bundle{Token: token, Target: target, Priority: PriorityNormal, AutoPriority: true, Status: BundleStatusNew, AddedTime: time.Now()}
}

// SetStatus transitions the bundle's lifecycle status. The transition is not
// logged.
func (b *Bundle) SetStatus(st BundleStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = st
}

func (b *Bundle) GetStatus() BundleStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Status
}

// SetPriority sets the bundle's priority directly, e.g. when a failed
// file_completion_hook pauses the bundle per spec.md §4.5.5 step 2.
func (b *Bundle) SetPriority(p Priority) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Priority = p
}

// GetPriority returns the bundle's current priority.
func (b *Bundle) GetPriority() Priority {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Priority
}

// AddFile appends f to the bundle. If the bundle is PAUSED_FORCE, a newly
// added file that would otherwise auto-prioritize to HIGHEST is demoted to
// HIGH instead (DESIGN.md open question 1): a forced pause on the bundle as
// a whole should not let one fresh file race ahead of the others.
func (b *Bundle) AddFile(f *QueueFile) {
	b.mu.Lock()
	forced := b.Priority == PriorityPausedForce
	f.Bundle = b
	b.Files = append(b.Files, f)
	b.mu.Unlock()

	if forced {
		f.mu.Lock()
		if f.Priority == PriorityHighest {
			f.Priority = PriorityHigh
		}
		f.mu.Unlock()
	}
}

func (b *Bundle) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total int64
	for _, f := range b.Files {
		total += f.Size
	}
	return total
}

func (b *Bundle) BytesDone() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total int64
	for _, f := range b.Files {
		total += f.BytesDone()
	}
	return total
}

// AllFilesCompleted reports whether every file in the bundle finished
// file_completion_hook successfully, the gate for running bundle_completion_hook
// (a single file stuck in VALIDATION_ERROR holds the whole bundle back).
func (b *Bundle) AllFilesCompleted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.Files) == 0 {
		return false
	}
	for _, f := range b.Files {
		f.mu.RLock()
		st := f.Status
		f.mu.RUnlock()
		if st != FileStatusCompleted {
			return false
		}
	}
	return true
}

func (b *Bundle) IsComplete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, f := range b.Files {
		if !f.IsComplete() {
			return false
		}
	}
	return len(b.Files) > 0
}
