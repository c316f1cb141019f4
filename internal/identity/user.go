// Package identity implements the process-wide user/identity model of
// spec.md §3.2: User (CID-keyed, hub-independent), Identity (per-online-hub
// INF snapshot), OnlineUser (the pair, scoped to one hub session) and an
// OfflineUser cache for users last seen but not currently connected.
//
// Grounded on original_source/airdcpp/User.cpp (the User/Identity/CID split
// and the flag bitset) and on OfflineUser.h (the disconnected-user cache
// keyed the same way). The registry's periodic sweep follows the teacher's
// session.go pattern of a single owning map guarded by one mutex rather than
// per-object locking.
package identity

import (
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
)

// Flag is a bit in User.Flags, mirroring airdcpp's User::MASK_* constants.
type Flag uint32

const (
	FlagOnline Flag = 1 << iota
	FlagDCPlusPlus
	FlagNMDC
	FlagBot
	FlagNoChatAccess
	FlagIgnored
	FlagFavorite
	FlagFireball
	FlagPassive
	FlagTLS
	FlagOld
)

// User is the hub-independent identity: everything keyed purely by CID, with
// no notion of "which hub" or "what nick right now" (those live in
// Identity). It is process-wide and survives disconnects.
type User struct {
	mu sync.RWMutex

	CID   adc.CID
	flags Flag

	// BytesQueuedFromMe tracks how much this user currently owes us across
	// every bundle we're downloading from them. Neither upload slot
	// arbitration nor any other package reads it.
	bytesQueuedFromMe int64

	lastSeen time.Time
}

func NewUser(cid adc.CID) *User {
	return &User{CID: cid, lastSeen: time.Now()}
}

func (u *User) SetFlag(f Flag) {
	u.mu.Lock()
	u.flags |= f
	u.mu.Unlock()
}

func (u *User) ClearFlag(f Flag) {
	u.mu.Lock()
	u.flags &^= f
	u.mu.Unlock()
}

func (u *User) HasFlag(f Flag) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.flags&f != 0
}

func (u *User) IsOnline() bool { return u.HasFlag(FlagOnline) }

func (u *User) AddBytesQueuedFromMe(delta int64) {
	u.mu.Lock()
	u.bytesQueuedFromMe += delta
	u.mu.Unlock()
}

func (u *User) BytesQueuedFromMe() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.bytesQueuedFromMe
}

func (u *User) Touch() {
	u.mu.Lock()
	u.lastSeen = time.Now()
	u.mu.Unlock()
}

func (u *User) LastSeen() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastSeen
}
