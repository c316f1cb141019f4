package adc

import (
	"fmt"

	"github.com/direct-connect/go-dc/base32"
	"github.com/direct-connect/go-dc/tiger"
)

// CID is the 192-bit Tiger hash of a per-install PID, base-32 encoded to 39
// characters on the wire (spec.md §3.1). It is the primary, stable user
// identity, independent of nick or hub.
type CID tiger.Hash

func (c CID) String() string {
	return base32.EncodeToString(c[:])
}

func (c CID) IsZero() bool {
	return c == CID{}
}

// ParseCID decodes a 39-character base-32 CID.
func ParseCID(s string) (CID, error) {
	b, err := base32.DecodeString(s)
	if err != nil {
		return CID{}, fmt.Errorf("adc: bad CID %q: %w", s, err)
	}
	if len(b) != len(CID{}) {
		return CID{}, fmt.Errorf("adc: CID %q decodes to %d bytes, want %d", s, len(b), len(CID{}))
	}
	var cid CID
	copy(cid[:], b)
	return cid, nil
}

// PID is a per-install private identifier. CIDFromPID hashes it the way a
// client derives its public CID to announce (ID=) from the private PID it
// never reveals (PD=, first INF only).
type PID tiger.Hash

func (p PID) String() string { return base32.EncodeToString(p[:]) }

// CIDFromPID derives a CID from a PID by Tiger-hashing it, per ADC's
// "ID equals Tiger hash of PID" identity rule.
func CIDFromPID(p PID) CID {
	return CID(tiger.HashBytes(p[:]))
}

// NMDCSyntheticCID builds the synthetic CID NMDC users are assigned so they
// can share the process-wide User map with ADC peers (spec.md §4.2.3):
// Tiger(lowercase(nick) || lowercase(hubURL)).
func NMDCSyntheticCID(nick, hubURL string) CID {
	data := append([]byte(lower(nick)), []byte(lower(hubURL))...)
	return CID(tiger.HashBytes(data))
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
