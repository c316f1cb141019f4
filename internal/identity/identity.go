package identity

import (
	"strconv"
	"sync"

	"github.com/airdcpp-go/client/internal/adc"
)

// Identity is a single hub session's INF snapshot: the mutable, per-hub view
// of a user (nick, share size, connectivity fields, SID), as opposed to the
// stable process-wide User it decorates. Grounded on Identity.h's split of
// "identity" (per-hub fields) from "user" (CID-keyed, global).
type Identity struct {
	mu sync.RWMutex

	user *User
	sid  adc.SID

	fields map[string]string // raw 2-letter ADC INF fields, e.g. "NI", "SS", "SL"

	mode ConnectMode
}

func NewIdentity(u *User, sid adc.SID) *Identity {
	return &Identity{user: u, sid: sid, fields: make(map[string]string)}
}

func (id *Identity) User() *User  { return id.user }
func (id *Identity) SID() adc.SID { return id.sid }

func (id *Identity) Set(field, value string) {
	id.mu.Lock()
	id.fields[field] = value
	id.mu.Unlock()
}

func (id *Identity) Get(field string) string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.fields[field]
}

func (id *Identity) Nick() string { return id.Get("NI") }

// ShareSize parses the "SS" field, defaulting to 0 on absence or a malformed
// value rather than erroring: a hub sending garbage for one field shouldn't
// take down the whole INF handler.
func (id *Identity) ShareSize() int64 {
	v := id.Get("SS")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (id *Identity) Slots() int {
	v := id.Get("SL")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (id *Identity) SetMode(m ConnectMode) {
	id.mu.Lock()
	id.mode = m
	id.mu.Unlock()
}

func (id *Identity) Mode() ConnectMode {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.mode
}

// Refresh recomputes Mode from the identity's current I4/I6/U4/U6 fields
// (ADC active-mode address/port advertisements) each time INF is updated.
func (id *Identity) Refresh() {
	id.mu.RLock()
	ip4, ip6 := id.fields["I4"], id.fields["I6"]
	u4, u6 := id.fields["U4"], id.fields["U6"]
	id.mu.RUnlock()
	id.SetMode(DeriveConnectMode(u4 != "" && u4 != "0", u6 != "" && u6 != "0", ip4, ip6))
}
