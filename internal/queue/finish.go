package queue

import (
	"fmt"
	"os"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// FinishSegment records seg as downloaded from cid, per spec.md §4.5.5: the
// byte range is coalesced into the done set and the source's assignment is
// released. It does not itself touch disk; the caller (internal/upload's
// counterpart on the requester side, internal/connmgr here) already wrote
// the bytes to the temp file before calling this.
func (m *Manager) FinishSegment(file *QueueFile, src *Source, seg Segment) {
	file.MarkDone(seg)
	src.unassign(seg)
	if b := file.Bundle; b != nil {
		b.AddSpeedSample(seg.Size)
	}
	if file.IsComplete() {
		m.finishFile(file)
	}
}

// AssignSegment records seg as newly handed to src, so NextSegment won't
// offer it again to another connection until it is finished or released.
func (m *Manager) AssignSegment(src *Source, seg Segment) {
	src.assign(seg)
}

// ReleaseSegment gives up an in-flight assignment without marking it done,
// e.g. on connection loss mid-segment.
func (m *Manager) ReleaseSegment(src *Source, seg Segment) {
	src.unassign(seg)
}

// finishFile moves the completed temp file into place and runs
// file_completion_hook (spec.md §4.5.5 step 2): an SFV/CRC or content
// validator may reject it, which sets the file to VALIDATION_ERROR with
// hook_error populated and pauses the owning bundle rather than letting it
// proceed to completion. The hook may be re-run later via RerunFileCompletion.
func (m *Manager) finishFile(file *QueueFile) {
	log.Infof("file finished: %s (%s)", file.Target, file.TTH)
	tmp := file.Target + ".tmp"
	if _, err := os.Stat(tmp); err == nil {
		if err := os.Rename(tmp, file.Target); err != nil {
			log.Errorf("rename %s -> %s: %v", tmp, file.Target, err)
		}
	}

	m.runFileCompletion(file)

	m.FileFinished.Notify(file, func(id string, err error) {
		log.Errorf("file-finished listener %s: %v", id, err)
	})

	if b := file.Bundle; b != nil && b.AllFilesCompleted() {
		b.SetStatus(BundleStatusDownloaded)
		m.finishBundle(b)
	}
}

func (m *Manager) runFileCompletion(file *QueueFile) {
	file.mu.Lock()
	file.Status = FileStatusValidationRunning
	file.mu.Unlock()

	err := m.FileCompletionHook.Fire(file)

	file.mu.Lock()
	defer file.mu.Unlock()
	if err != nil {
		file.Status = FileStatusValidationError
		if r, ok := xerrors.AsRejection(err); ok {
			file.HookError = r
		} else {
			file.HookError = xerrors.NewRejection("file_completion", "error", err.Error())
		}
		if file.Bundle != nil {
			file.Bundle.SetPriority(PriorityPaused)
		}
		return
	}
	file.Status = FileStatusCompleted
	file.HookError = nil
}

// RerunFileCompletion re-runs file_completion_hook for a file stuck in
// VALIDATION_ERROR, per spec.md scenario 5's "the hook may be re-run later."
func (m *Manager) RerunFileCompletion(file *QueueFile) {
	m.runFileCompletion(file)
	if b := file.Bundle; b != nil && b.AllFilesCompleted() {
		m.finishBundle(b)
	}
}

// finishBundle runs bundle_completion_hook (spec.md §4.5.5 step 3) once every
// file in the bundle is downloaded: DOWNLOADED -> VALIDATION_RUNNING, then
// VALIDATION_ERROR on reject (hook_error populated) or SHARED on success.
func (m *Manager) finishBundle(b *Bundle) {
	b.SetStatus(BundleStatusValidationRunning)
	err := m.BundleCompletionHook.Fire(b)

	if err != nil {
		b.mu.Lock()
		b.Status = BundleStatusValidationError
		if r, ok := xerrors.AsRejection(err); ok {
			b.HookError = r
		} else {
			b.HookError = xerrors.NewRejection("bundle_completion", "error", err.Error())
		}
		b.mu.Unlock()
		log.Errorf("bundle completion rejected: %s: %v", b.Target, err)
		return
	}

	b.mu.Lock()
	b.Status = BundleStatusShared
	b.HookError = nil
	b.FinishedTime = time.Now()
	b.mu.Unlock()

	log.Infof("bundle finished: %s", b.Target)
	m.BundleFinished.Notify(b, func(id string, err error) {
		log.Errorf("bundle-finished listener %s: %v", id, err)
	})
}

// RerunBundleCompletion re-runs bundle_completion_hook for a bundle stuck in
// VALIDATION_ERROR, per spec.md scenario 5's "re-triggering the hook with
// success transitions to SHARED."
func (m *Manager) RerunBundleCompletion(b *Bundle) {
	m.finishBundle(b)
}

// RecheckFile re-validates file's on-disk temp data against its TTH tree,
// per spec.md §4.5.6: any segment whose block hash doesn't match is
// dropped from the done set so it gets re-downloaded, rather than failing
// the whole file outright.
//
// blockSize and verifyBlock are supplied by the caller (internal/resume
// owns the on-disk TTH tree); this function only owns the done-set
// bookkeeping, keeping queue free of a direct dependency on the hashing
// package.
func (m *Manager) RecheckFile(file *QueueFile, blockSize int64, verifyBlock func(offset, size int64) (bool, error)) error {
	done := file.DoneSegments()
	var kept []Segment
	for _, seg := range done {
		ok, err := verifyBlockRange(seg, blockSize, verifyBlock)
		if err != nil {
			return fmt.Errorf("recheck %s: %w", file.Target, err)
		}
		if ok {
			kept = append(kept, seg)
		}
	}
	file.mu.Lock()
	file.done = kept
	file.mu.Unlock()
	return nil
}

func verifyBlockRange(seg Segment, blockSize int64, verifyBlock func(int64, int64) (bool, error)) (bool, error) {
	for off := seg.Start; off < seg.End(); off += blockSize {
		size := blockSize
		if off+size > seg.End() {
			size = seg.End() - off
		}
		ok, err := verifyBlock(off, size)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MarkBadSource flags cid as a bad source for file (failed TTH
// verification) per spec.md §4.5's source/bad-source mutual exclusion
// invariant: a bad source stays registered (so the UI can show why it was
// excluded) but NextSegment must never hand it new work.
func (m *Manager) MarkBadSource(file *QueueFile, cid adc.CID) {
	if src, ok := file.Source(cid); ok {
		src.mu.Lock()
		src.BadSource = true
		src.mu.Unlock()
	}
}
