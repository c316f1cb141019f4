package adc

import (
	"fmt"

	"github.com/direct-connect/go-dc/base32"
)

// SID is a 32-bit session identifier, unique within one hub for the
// lifetime of that session (spec.md §3.1). On the wire it is 4 base-32
// characters.
type SID [4]byte

// HubSID is the reserved broadcast/hub pseudo-SID (spec.md §4.1: "The HUB
// SID is reserved as 0xFFFFFFFF"), grounded on AdcCommand.h's HUB_SID.
var HubSID = SID{0xff, 0xff, 0xff, 0xff}

func (s SID) String() string {
	return base32.EncodeToString(s[:])
}

func (s SID) IsZero() bool {
	return s == SID{}
}

// ParseSID decodes the 4-character base-32 session id from an ADC header.
func ParseSID(s string) (SID, error) {
	b, err := base32.DecodeString(s)
	if err != nil {
		return SID{}, fmt.Errorf("adc: bad SID %q: %w", s, err)
	}
	if len(b) != 4 {
		return SID{}, fmt.Errorf("adc: SID %q decodes to %d bytes, want 4", s, len(b))
	}
	var sid SID
	copy(sid[:], b)
	return sid, nil
}

// SIDFromUint32 builds a SID the way a hub assigns one to a connecting
// client: four arbitrary non-zero, non-HUB_SID bytes.
func SIDFromUint32(v uint32) SID {
	return SID{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
