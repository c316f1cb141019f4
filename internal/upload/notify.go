package upload

import (
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/hook"
)

// BundleProgress is pushed to every connected downloader of a bundle we're
// also a source for, so they can update their own PBD-derived view of what
// we have without polling. This is SPEC_FULL's concretization of
// UploadBundleInfoSender: the reference implementation sends UBN/PBD
// updates to interested peers on a timer. Here updates are staged with
// Stage or NotifyBundleProgress and delivered to subscribers by Flush;
// nothing in this repository calls Flush on a timer.
type BundleProgress struct {
	BundleToken string
	Downloaded  int64
	Total       int64
	Speed       float64
}

// InfoSender batches and fans out BundleProgress updates, debouncing so a
// fast-moving bundle doesn't spam a PBD per byte.
type InfoSender struct {
	mu       sync.Mutex
	pending  map[string]BundleProgress
	interval time.Duration

	listeners *hook.Listener[BundleProgress]
}

func NewInfoSender(interval time.Duration) *InfoSender {
	return &InfoSender{
		pending:   make(map[string]BundleProgress),
		interval:  interval,
		listeners: hook.NewListener[BundleProgress](),
	}
}

func (s *InfoSender) Subscribe(id string, fn func(BundleProgress) error) {
	s.listeners.Subscribe(id, fn)
}

// Stage records the latest progress for a bundle token, to be flushed by
// the next Flush call.
func (s *InfoSender) Stage(p BundleProgress) {
	s.mu.Lock()
	s.pending[p.BundleToken] = p
	s.mu.Unlock()
}

// Flush fans out every staged update and clears the batch. It does not
// schedule itself; Interval reports the cadence the sender was built with.
func (s *InfoSender) Flush(onErr func(id string, err error)) {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]BundleProgress)
	s.mu.Unlock()

	for _, p := range batch {
		s.listeners.Notify(p, onErr)
	}
}

func (s *InfoSender) Interval() time.Duration { return s.interval }

// NotifyBundleProgress stages one bundle's progress for the next Flush. The
// to argument is not used: every subscriber receives every update.
func (s *InfoSender) NotifyBundleProgress(bundleToken string, downloaded, total int64, speed float64, to adc.CID) {
	s.Stage(BundleProgress{BundleToken: bundleToken, Downloaded: downloaded, Total: total, Speed: speed})
}
