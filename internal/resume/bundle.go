package resume

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/queue"
)

// bundleXML is the on-disk shape of one bundle, written to
// bundles/<token>.xml per spec.md §6.3. It mirrors QueueManager's
// Bundle/File XML schema closely enough to keep the format recognizable,
// without importing any C++ naming verbatim.
type bundleXML struct {
	XMLName xml.Name     `xml:"Bundle"`
	Token   string       `xml:"Token,attr"`
	Target  string       `xml:"Target,attr"`
	Added   int64        `xml:"Added,attr"`
	Files   []fileXML    `xml:"File"`
}

type fileXML struct {
	Token string     `xml:"Token,attr"`
	Path  string     `xml:"Target,attr"`
	Size  int64      `xml:"Size,attr"`
	TTH   string     `xml:"TTH,attr"`
	Done  []segXML   `xml:"Segment"`
}

type segXML struct {
	Start int64 `xml:"Start,attr"`
	Size  int64 `xml:"Size,attr"`
}

// BundleStore writes per-bundle XML files with a debounce so rapid segment
// completions coalesce into one write, per spec.md's BundleSaveDebounce.
type BundleStore struct {
	dir      string
	debounce time.Duration
	db       *DB

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]*queue.Bundle
}

func NewBundleStore(dataDir string, debounce time.Duration, db *DB) *BundleStore {
	dir := filepath.Join(dataDir, "bundles")
	os.MkdirAll(dir, 0755)
	return &BundleStore{
		dir:      dir,
		debounce: debounce,
		db:       db,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]*queue.Bundle),
	}
}

// ScheduleSave debounces a write for b: a call arriving within the
// debounce window of a prior one resets the timer instead of writing
// twice.
func (s *BundleStore) ScheduleSave(b *queue.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[b.Token] = b
	if t, ok := s.timers[b.Token]; ok {
		t.Reset(s.debounce)
		return
	}
	s.timers[b.Token] = time.AfterFunc(s.debounce, func() { s.flush(b.Token) })
}

func (s *BundleStore) flush(token string) {
	s.mu.Lock()
	b, ok := s.pending[token]
	delete(s.pending, token)
	delete(s.timers, token)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.save(b); err != nil {
		log.Errorf("save bundle %s: %v", token, err)
	}
}

func (s *BundleStore) save(b *queue.Bundle) error {
	x := bundleXML{Token: b.Token, Target: b.Target, Added: b.AddedTime.Unix()}
	for _, f := range b.Files {
		fx := fileXML{Token: f.Token, Path: f.Target, Size: f.Size, TTH: f.TTH}
		for _, seg := range f.DoneSegments() {
			fx.Done = append(fx.Done, segXML{Start: seg.Start, Size: seg.Size})
		}
		x.Files = append(x.Files, fx)
	}
	data, err := xml.MarshalIndent(x, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, b.Token+".xml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	return s.db.SaveBundleIndexEntry(BundleIndexEntry{Token: b.Token, XMLPath: path, AddedAt: b.AddedTime})
}

// Load reads one bundle's XML back, used at startup to rebuild the queue.
func Load(path string) (*queue.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var x bundleXML
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("resume: parse %s: %w", path, err)
	}
	b := queue.NewBundle(x.Token, x.Target)
	for _, fx := range x.Files {
		f := queue.NewQueueFile(fx.Token, fx.Path, fx.Size, fx.TTH)
		for _, sx := range fx.Done {
			f.MarkDone(queue.Segment{Start: sx.Start, Size: sx.Size})
		}
		b.AddFile(f)
	}
	return b, nil
}

// LoadAll reconstructs every bundle listed in the index, in parallel, the
// way session.loadExistingTorrents does: one goroutine per bundle, results
// collected over a buffered channel, with no concurrency bound since bundle
// counts are small relative to torrent counts in the teacher's use case.
func LoadAll(db *DB) ([]*queue.Bundle, error) {
	entries, err := db.LoadBundleIndex()
	if err != nil {
		return nil, err
	}
	type result struct {
		b   *queue.Bundle
		err error
	}
	results := make(chan result, len(entries))
	for _, e := range entries {
		go func(e BundleIndexEntry) {
			b, err := Load(e.XMLPath)
			results <- result{b, err}
		}(e)
	}
	var out []*queue.Bundle
	for range entries {
		r := <-results
		if r.err != nil {
			log.Errorf("load bundle: %v", r.err)
			continue
		}
		out = append(out, r.b)
	}
	return out, nil
}

// ImportLegacyQueue reads a single monolithic Queue.xml (the reference
// implementation's pre-per-bundle format) and converts it into individual
// per-bundle files via BundleStore, then deletes the legacy file — a
// one-time migration run once at startup if the legacy path exists.
func ImportLegacyQueue(legacyPath string, store *BundleStore) error {
	if _, err := os.Stat(legacyPath); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return err
	}
	var doc struct {
		Bundles []bundleXML `xml:"Bundle"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("resume: parse legacy queue: %w", err)
	}
	for _, x := range doc.Bundles {
		token := x.Token
		if token == "" {
			token = NewBundleToken()
		}
		b := queue.NewBundle(token, x.Target)
		for _, fx := range x.Files {
			f := queue.NewQueueFile(fx.Token, fx.Path, fx.Size, fx.TTH)
			for _, sx := range fx.Done {
				f.MarkDone(queue.Segment{Start: sx.Start, Size: sx.Size})
			}
			b.AddFile(f)
		}
		store.ScheduleSave(b)
		store.flush(b.Token)
	}
	return os.Remove(legacyPath)
}
