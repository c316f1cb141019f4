package search

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/airdcpp-go/client/internal/adc"
)

// Listener owns the UDP socket that receives both plaintext URES/$SR
// packets and SUDP-encrypted ones, routing decoded Results into Manager.
type Listener struct {
	conn *net.UDPConn
	keys *KeyStore
	mgr  *Manager
}

func NewListener(conn *net.UDPConn, keys *KeyStore, mgr *Manager) *Listener {
	return &Listener{conn: conn, keys: keys, mgr: mgr}
}

// Run reads packets until ctx is cancelled. Each packet is either a
// plaintext ADC "URES ..." / NMDC "$SR ..." line, or ciphertext that only
// decrypts into one of those two shapes under a valid SUDP key.
func (l *Listener) Run(ctx context.Context) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		l.handlePacket(buf[:n])
	}
}

func (l *Listener) handlePacket(data []byte) {
	if looksLikePlaintext(data) {
		l.handleLine(string(data))
		return
	}
	pt, ok := l.keys.TryDecrypt(data)
	if !ok {
		return
	}
	l.handleLine(string(pt))
}

func looksLikePlaintext(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	// ADC URES starts with the 4-char header "URES"; NMDC $SR starts "$SR ".
	return string(data[:4]) == "URES" || string(data[:3]) == "$SR"
}

func (l *Listener) handleLine(line string) {
	line = strings.TrimRight(line, "\n\r|")
	switch {
	case strings.HasPrefix(line, "URES"):
		l.handleADCResult(line)
	case strings.HasPrefix(line, "$SR "):
		l.handleNMDCResult(line)
	}
}

func (l *Listener) handleADCResult(line string) {
	c, err := adc.Parse(line, false)
	if err != nil {
		return
	}
	r := Result{FromCID: c.From.String()}
	if v, ok := c.GetParam("TO", 0); ok {
		r.Token = v
	}
	if v, ok := c.GetParam("FN", 0); ok {
		r.Path = v
	}
	if v, ok := c.GetParam("SI", 0); ok {
		r.Size = parseInt64(v)
	}
	if v, ok := c.GetParam("TR", 0); ok {
		r.TTH = v
	}
	if v, ok := c.GetParam("SL", 0); ok {
		r.SlotsFree = int(parseInt64(v))
	}
	l.mgr.DeliverResult(r)
}

// handleNMDCResult parses "$SR <nick> <path>\x05<size> <free>/<total>\x05TTH:<tth> (<hub>)".
func (l *Listener) handleNMDCResult(line string) {
	body := strings.TrimPrefix(line, "$SR ")
	parts := strings.SplitN(body, "\x05", 3)
	if len(parts) < 2 {
		return
	}
	head := parts[0]
	sp := strings.IndexByte(head, ' ')
	if sp < 0 {
		return
	}
	r := Result{Path: head[sp+1:]}
	sizeSlots := parts[1]
	spaceIdx := strings.LastIndexByte(sizeSlots, ' ')
	if spaceIdx > 0 {
		r.Size = parseInt64(sizeSlots[:spaceIdx])
		slots := sizeSlots[spaceIdx+1:]
		if slash := strings.IndexByte(slots, '/'); slash > 0 {
			r.SlotsFree = int(parseInt64(slots[:slash]))
			r.SlotsTotal = int(parseInt64(slots[slash+1:]))
		}
	}
	if len(parts) == 3 && strings.HasPrefix(parts[2], "TTH:") {
		rest := strings.TrimPrefix(parts[2], "TTH:")
		if sp := strings.IndexByte(rest, ' '); sp > 0 {
			r.TTH = rest[:sp]
		} else {
			r.TTH = rest
		}
	}
	l.mgr.DeliverResult(r)
}

func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
