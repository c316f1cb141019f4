package upload

import (
	"sort"
	"sync"

	"github.com/airdcpp-go/client/internal/adc"
)

// MCNConn is one active multi-connection upload to a user, tracked for the
// rebalance decision in spec.md §4.6.2.
type MCNConn struct {
	CID       adc.CID
	Token     string // per-connection token, used to single out which one to drop
	SpeedBps  float64
	BundleTok string
}

// Rebalancer decides which MCN connection to disconnect when a user's
// connection count would exceed MaxMCNConnsPerUser after a new bundle
// claims a slot from them: the existing connection with the lowest current
// speed for that user is dropped, not the oldest one, which favors whichever
// bundle is actually transferring well.
//
// Grounded on UploadManager.cpp's MCN multi-upload handling, generalized
// from its per-user linked list to a slice sort since our connection counts
// per user are small (bounded by MaxMCNConnsPerUser).
type Rebalancer struct {
	mu    sync.Mutex
	conns map[adc.CID][]MCNConn
}

func NewRebalancer() *Rebalancer {
	return &Rebalancer{conns: make(map[adc.CID][]MCNConn)}
}

func (r *Rebalancer) Track(c MCNConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.CID] = append(r.conns[c.CID], c)
}

func (r *Rebalancer) Untrack(cid adc.CID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.conns[cid]
	for i, c := range list {
		if c.Token == token {
			r.conns[cid] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.conns[cid]) == 0 {
		delete(r.conns, cid)
	}
}

func (r *Rebalancer) UpdateSpeed(cid adc.CID, token string, speedBps float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.conns[cid] {
		if c.Token == token {
			r.conns[cid][i].SpeedBps = speedBps
			return
		}
	}
}

// PickVictim returns the token of the slowest connection for cid, the one
// to drop to make room, or ok=false if cid has no tracked
// connections.
func (r *Rebalancer) PickVictim(cid adc.CID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.conns[cid]
	if len(list) == 0 {
		return "", false
	}
	sorted := append([]MCNConn{}, list...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SpeedBps < sorted[j].SpeedBps })
	return sorted[0].Token, true
}

func (r *Rebalancer) Count(cid adc.CID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[cid])
}
