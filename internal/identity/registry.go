package identity

import (
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/logging"
)

var log = logging.New("identity")

// Registry is the process-wide CID -> User table plus the offline-user
// cache, owned by one mutex the way session.go owns its torrents map rather
// than giving every User its own lock for membership changes (per-User
// fields still use their own RWMutex for hot fields like flags/bytes).
type Registry struct {
	mu      sync.RWMutex
	users   map[adc.CID]*User
	offline map[adc.CID]*OfflineUser

	gcInterval time.Duration
	gcMaxAge   time.Duration

	stopC chan struct{}
	doneC chan struct{}
}

// NewRegistry builds a registry with a 10-minute sweep dropping offline
// users not seen in over 24h, per spec.md's "periodic GC sweep (~10 min)"
// note on the CID->User process table.
func NewRegistry() *Registry {
	return &Registry{
		users:      make(map[adc.CID]*User),
		offline:    make(map[adc.CID]*OfflineUser),
		gcInterval: 10 * time.Minute,
		gcMaxAge:   24 * time.Hour,
		stopC:      make(chan struct{}),
		doneC:      make(chan struct{}),
	}
}

// GetOrCreate returns the existing User for cid, or registers a new one.
func (r *Registry) GetOrCreate(cid adc.CID) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[cid]; ok {
		return u
	}
	u := NewUser(cid)
	r.users[cid] = u
	return u
}

func (r *Registry) Lookup(cid adc.CID) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[cid]
	return u, ok
}

// MarkOffline snapshots a disconnecting user into the offline cache. It
// leaves the live User entry in place: other hub sessions, or queue
// sources, may still reference it while this session alone goes offline.
func (r *Registry) MarkOffline(cid adc.CID, nick, hubURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline[cid] = &OfflineUser{CID: cid, Nick: nick, HubURL: hubURL, LastSeen: time.Now()}
}

func (r *Registry) LookupOffline(cid adc.CID) (*OfflineUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.offline[cid]
	return o, ok
}

// Run drives the periodic GC sweep until Stop is called. It's meant to be
// started as a goroutine by the owning App, following the teacher's
// convention of a small number of long-lived background loops rather than a
// timer per object.
func (r *Registry) Run() {
	defer close(r.doneC)
	t := time.NewTicker(r.gcInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopC:
			return
		case <-t.C:
			r.sweep()
		}
	}
}

func (r *Registry) Stop() {
	close(r.stopC)
	<-r.doneC
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.gcMaxAge)
	r.mu.Lock()
	defer r.mu.Unlock()

	for cid, o := range r.offline {
		if o.LastSeen.Before(cutoff) {
			delete(r.offline, cid)
		}
	}
	removed := 0
	for cid, u := range r.users {
		if u.IsOnline() {
			continue
		}
		if u.LastSeen().Before(cutoff) {
			delete(r.users, cid)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("gc swept %d stale users", removed)
	}
}
