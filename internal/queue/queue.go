package queue

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/hook"
	"github.com/airdcpp-go/client/internal/logging"
	"github.com/airdcpp-go/client/internal/xerrors"
)

var log = logging.New("queue")

// SourceAdd is the payload passed through the AddSourceHook, letting
// subscribers veto adding a source (e.g. a skiplist or share-self check),
// per spec.md §4.8 and grounded on QueueManagerListener's SourceAdded
// validation point.
type SourceAdd struct {
	File *QueueFile
	CID  adc.CID
}

// Manager owns every FileQueue/BundleQueue/UserQueue index and the hooks
// gating mutation, the Go analogue of QueueManager.
type Manager struct {
	mu sync.RWMutex

	filesByToken   map[string]*QueueFile
	filesByTTH     map[string][]*QueueFile
	bundlesByToken map[string]*Bundle
	userQueue      map[adc.CID]map[string]*QueueFile // cid -> token -> file, for "what do I have queued from this user"

	dataDir string

	AddSourceHook *hook.Hook[SourceAdd]
	FileFinished  *hook.Listener[*QueueFile]
	BundleFinished *hook.Listener[*Bundle]

	// BundleValidationHook and BundleFileValidationHook gate AddBundleDirectory
	// (and AddFile's single-file bundle path), per spec.md §4.8's
	// bundle_validation/bundle_file_validation hook ids.
	BundleValidationHook     *hook.Hook[*Bundle]
	BundleFileValidationHook *hook.Hook[BundleFileSpec]

	// FileCompletionHook and BundleCompletionHook gate finishFile/finishBundle,
	// per spec.md §4.8's file_completion/bundle_completion hook ids and
	// §4.5.5 steps 2-3.
	FileCompletionHook   *hook.Hook[*QueueFile]
	BundleCompletionHook *hook.Hook[*Bundle]
}

func NewManager(dataDir string) *Manager {
	return &Manager{
		filesByToken:   make(map[string]*QueueFile),
		filesByTTH:     make(map[string][]*QueueFile),
		bundlesByToken: make(map[string]*Bundle),
		userQueue:      make(map[adc.CID]map[string]*QueueFile),
		dataDir:        dataDir,
		AddSourceHook:  hook.New[SourceAdd](),
		FileFinished:   hook.NewListener[*QueueFile](),
		BundleFinished: hook.NewListener[*Bundle](),

		BundleValidationHook:     hook.New[*Bundle](),
		BundleFileValidationHook: hook.New[BundleFileSpec](),
		FileCompletionHook:       hook.New[*QueueFile](),
		BundleCompletionHook:     hook.New[*Bundle](),
	}
}

// AddFile queues target as a standalone, single-file bundle (spec.md
// §4.5.1's add_file), rejecting empty targets, path traversal outside
// dataDir, and files already present on disk at the target path.
func (m *Manager) AddFile(token, target string, size int64, tth string) (*QueueFile, error) {
	if target == "" {
		return nil, xerrors.ErrEmptyTarget
	}
	clean := filepath.Clean(target)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(m.dataDir, clean)
	}
	if !strings.HasPrefix(clean, filepath.Clean(m.dataDir)+string(filepath.Separator)) {
		return nil, xerrors.ErrPathTraversal
	}
	if _, err := os.Stat(clean); err == nil {
		return nil, xerrors.ErrTargetFileExists
	}

	spec := BundleFileSpec{Token: token, RelPath: filepath.Base(clean), Size: size, TTH: tth}
	if err := m.BundleFileValidationHook.Fire(spec); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	qf := NewQueueFile(token, clean, size, tth)
	b := NewBundle(token, clean)
	b.AddFile(qf)

	if err := m.BundleValidationHook.Fire(b); err != nil {
		return nil, err
	}

	m.filesByToken[token] = qf
	m.filesByTTH[tth] = append(m.filesByTTH[tth], qf)
	m.bundlesByToken[b.Token] = b
	return qf, nil
}

// AddBundleDirectory queues every entry as one Bundle sharing dirTarget,
// per spec.md §4.5.1's add_bundle_directory. Files whose TTH already has a
// queued entry are merged into the existing file rather than duplicated
// (bundle merge rule).
func (m *Manager) AddBundleDirectory(bundleToken, dirTarget string, entries []BundleFileSpec) (*Bundle, error) {
	for _, e := range entries {
		if err := m.BundleFileValidationHook.Fire(e); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := NewBundle(bundleToken, dirTarget)
	for _, e := range entries {
		if existing := m.firstByTTHLocked(e.TTH); existing != nil {
			b.AddFile(existing)
			continue
		}
		qf := NewQueueFile(e.Token, filepath.Join(dirTarget, e.RelPath), e.Size, e.TTH)
		m.filesByToken[e.Token] = qf
		m.filesByTTH[e.TTH] = append(m.filesByTTH[e.TTH], qf)
		b.AddFile(qf)
	}

	if err := m.BundleValidationHook.Fire(b); err != nil {
		return nil, err
	}

	m.bundlesByToken[b.Token] = b
	return b, nil
}

// BundleFileSpec is one file entry passed to AddBundleDirectory.
type BundleFileSpec struct {
	Token   string
	RelPath string
	Size    int64
	TTH     string
}

func (m *Manager) firstByTTHLocked(tth string) *QueueFile {
	files := m.filesByTTH[tth]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// AddSource registers cid as a source for file, running AddSourceHook first
// so subscribers can veto (e.g. self-source, skiplist, already-a-source).
func (m *Manager) AddSource(file *QueueFile, cid adc.CID, partial []Segment) error {
	if _, ok := file.Source(cid); ok {
		return xerrors.ErrDuplicateSource
	}
	if err := m.AddSourceHook.Fire(SourceAdd{File: file, CID: cid}); err != nil {
		return err
	}

	src := &Source{CID: cid, Online: true, PartialInfo: partial}
	file.AddSource(src)

	m.mu.Lock()
	uq, ok := m.userQueue[cid]
	if !ok {
		uq = make(map[string]*QueueFile)
		m.userQueue[cid] = uq
	}
	uq[file.Token] = file
	m.mu.Unlock()
	return nil
}

// RemoveSource drops cid as a source for file, e.g. on disconnect or
// verification failure (BadSource handling lives in finish.go).
func (m *Manager) RemoveSource(file *QueueFile, cid adc.CID) {
	file.RemoveSource(cid)
	m.mu.Lock()
	if uq, ok := m.userQueue[cid]; ok {
		delete(uq, file.Token)
		if len(uq) == 0 {
			delete(m.userQueue, cid)
		}
	}
	m.mu.Unlock()
}

// FilesForUser returns every QueueFile cid is a registered source for,
// i.e. the UserQueue index (spec.md §3.3).
func (m *Manager) FilesForUser(cid adc.CID) []*QueueFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uq := m.userQueue[cid]
	out := make([]*QueueFile, 0, len(uq))
	for _, f := range uq {
		out = append(out, f)
	}
	return out
}

func (m *Manager) FileByToken(token string) (*QueueFile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.filesByToken[token]
	return f, ok
}

func (m *Manager) BundleByToken(token string) (*Bundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bundlesByToken[token]
	return b, ok
}

func (m *Manager) Bundles() []*Bundle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Bundle, 0, len(m.bundlesByToken))
	for _, b := range m.bundlesByToken {
		out = append(out, b)
	}
	return out
}

// RemoveBundle removes a bundle and every file exclusively owned by it
// from all indices. Files shared with another bundle (via TTH merge) are
// left in place, matching the "nested bundle" merge semantics.
func (m *Manager) RemoveBundle(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bundlesByToken[token]
	if !ok {
		return
	}
	delete(m.bundlesByToken, token)
	for _, f := range b.Files {
		shared := false
		for _, other := range m.bundlesByToken {
			for _, of := range other.Files {
				shared = shared || of == f
			}
		}
		if shared {
			continue
		}
		delete(m.filesByToken, f.Token)
		tths := m.filesByTTH[f.TTH]
		for i, c := range tths {
			if c == f {
				m.filesByTTH[f.TTH] = append(tths[:i], tths[i+1:]...)
				break
			}
		}
		for cid, uq := range m.userQueue {
			delete(uq, f.Token)
			if len(uq) == 0 {
				delete(m.userQueue, cid)
			}
		}
	}
}
