// Package upload implements the upload engine of spec.md §4.6: slot
// arbitration across STANDARD/MCN/SMALL/MINI/PARTIAL/EXTRA classes, MCN
// per-user rebalancing, and bundle-progress notification to downloaders.
//
// Grounded on original_source/airdcpp/UploadManager.cpp/.h for the slot
// class hierarchy and arbitration order, and on the teacher's choke/unchoke
// accounting (session/timers.go) for the general shape of "rank active
// transfers, keep the top N, release the rest" — generalized from
// BitTorrent's single choke algorithm to DC's several independent slot
// pools.
package upload

import (
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/hook"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// smallFileMax is the MCN small-file channel threshold (spec.md §4.6.1(2)):
// "≤ 64 KiB or a partial list."
const smallFileMax = 64 * 1024

// graceSlotCooldown bounds how often the low-speed grace slot (§4.6.1(6))
// can fire, regardless of how many requests arrive while upload speed is low.
const graceSlotCooldown = 30 * time.Second

// SlotClass is the pool an upload is granted from. Grant checks them in
// this order (spec.md §4.6.1): a user on the reserved list gets a standard
// slot outright; otherwise the small-file channel is tried first, then open
// standard capacity, then another MCN connection for a user who already
// holds one, then mini slots, then partial-file slots, then the low-speed
// grace slot (granted as standard). Grant never hands out SlotExtra.
type SlotClass int

const (
	SlotNone SlotClass = iota
	SlotStandard
	SlotMCN
	SlotSmall
	SlotMini
	SlotPartial
	SlotExtra
)

func (c SlotClass) String() string {
	switch c {
	case SlotStandard:
		return "standard"
	case SlotMCN:
		return "mcn"
	case SlotSmall:
		return "small"
	case SlotMini:
		return "mini"
	case SlotPartial:
		return "partial"
	case SlotExtra:
		return "extra"
	default:
		return "none"
	}
}

// Limits mirrors internal/config's slot-related fields, passed in rather
// than importing config directly to keep upload's dependency surface
// narrow and testable.
type Limits struct {
	MaxSlots           int
	ExtraSlots         int
	ExtraPartialSlots  int
	MaxSmallFileSlots  int
	MiniSlotSize       int64
	MaxMCNConnsPerUser int
	SpeedLimitBps      float64 // grace-slot threshold, §4.6.1(6)
}

// Request describes one inbound GET/CTM-triggered upload request that
// needs a slot decision.
type Request struct {
	CID      adc.CID
	FileSize int64

	IsPartialList bool // a partial filelist, counts toward the SMALL channel regardless of size
	IsPartial     bool // served from a partial-file-share location, §4.6.1(5)

	// MiniSlotEligible marks a file small enough or matching the mini-slot
	// extension glob; only consulted when PeerSupportsMiniSlots is set,
	// per §4.6.1(4).
	MiniSlotEligible      bool
	PeerSupportsMiniSlots bool

	IsReserved  bool // on the reserved-slot/favorites pre-grant list
	UserHasSlot bool // CID already holds an MCN-class slot, candidate for another MCN connection
}

// Manager arbitrates slot grants across all active uploads.
type Manager struct {
	mu sync.Mutex

	limits Limits

	standardInUse int
	smallInUse    int
	partialInUse  int
	extraInUse    int
	mcnPerUser    map[adc.CID]int

	currentSpeedBps float64
	lastGraceSlot   time.Time

	// SlotTypeHook lets subscribers veto a request before Grant arbitrates
	// it, per spec.md §4.8's slot_type hook. A subscriber cannot change which
	// class is granted.
	SlotTypeHook *hook.Hook[Request]
}

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits, mcnPerUser: make(map[adc.CID]int), SlotTypeHook: hook.New[Request]()}
}

// UpdateSpeed records the engine's current aggregate upload speed, consulted
// by the low-speed grace slot rule.
func (m *Manager) UpdateSpeed(bps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentSpeedBps = bps
}

// Grant decides a slot class for req, or returns an error if no pool has
// room, per the arbitration order in spec.md §4.6.1. SlotTypeHook runs first
// and can veto the request outright.
func (m *Manager) Grant(req Request) (SlotClass, error) {
	if err := m.SlotTypeHook.Fire(req); err != nil {
		return SlotNone, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Reserved-slot/favorites pre-grant: bypasses the running_users<max_slots
	// gate entirely, per §4.6.1's "A reserved-slot list ... pre-grants
	// standard slots to named users."
	if req.IsReserved {
		m.standardInUse++
		return SlotStandard, nil
	}

	// (2) MCN small-file channel.
	if (req.FileSize <= smallFileMax || req.IsPartialList) && m.smallInUse < m.limits.MaxSmallFileSlots {
		m.smallInUse++
		return SlotSmall, nil
	}

	// (3) Permanent: open standard capacity, or another MCN connection for a
	// user who already holds one.
	if m.standardInUse < m.limits.MaxSlots {
		m.standardInUse++
		return SlotStandard, nil
	}
	if req.UserHasSlot && m.mcnPerUser[req.CID] < m.limits.MaxMCNConnsPerUser {
		m.mcnPerUser[req.CID]++
		return SlotMCN, nil
	}

	// (4) Mini slot: gated on the peer advertising MiniSlots support, bounded
	// by EXTRA_SLOTS (the reference implementation grants these out of the
	// same "extra" pool as reserved slots, not a separate one).
	if req.PeerSupportsMiniSlots && req.MiniSlotEligible && m.extraInUse < m.limits.ExtraSlots {
		m.extraInUse++
		return SlotMini, nil
	}

	// (5) Partial slot.
	if req.IsPartial && m.partialInUse < m.limits.ExtraPartialSlots {
		m.partialInUse++
		return SlotPartial, nil
	}

	// (6) Low-speed grace slot: at most once per graceSlotCooldown.
	if m.currentSpeedBps < m.limits.SpeedLimitBps && time.Since(m.lastGraceSlot) >= graceSlotCooldown {
		m.lastGraceSlot = time.Now()
		m.standardInUse++
		return SlotStandard, nil
	}

	return SlotNone, xerrors.ErrNoSlotAvailable
}

// Release returns a previously granted slot to its pool.
func (m *Manager) Release(cid adc.CID, class SlotClass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch class {
	case SlotStandard:
		if m.standardInUse > 0 {
			m.standardInUse--
		}
	case SlotMCN:
		if n := m.mcnPerUser[cid]; n > 0 {
			m.mcnPerUser[cid] = n - 1
			if m.mcnPerUser[cid] == 0 {
				delete(m.mcnPerUser, cid)
			}
		}
	case SlotMini:
		if m.extraInUse > 0 {
			m.extraInUse--
		}
	case SlotSmall:
		if m.smallInUse > 0 {
			m.smallInUse--
		}
	case SlotPartial:
		if m.partialInUse > 0 {
			m.partialInUse--
		}
	case SlotExtra:
		if m.extraInUse > 0 {
			m.extraInUse--
		}
	}
}

func (m *Manager) StandardSlotsFree() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.limits.MaxSlots - m.standardInUse
	if n < 0 {
		return 0
	}
	return n
}
