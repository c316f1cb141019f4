package hub

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/identity"
	"github.com/airdcpp-go/client/internal/logging"
)

// nmdcHub drives the legacy NMDC "$COMMAND params|" line protocol
// (spec.md §4.2.3): nick-keyed roster, synthetic CID derivation, and
// IPv4-only connectivity. Grounded on the same reference shapes as
// internal/identity.NMDCSyntheticCID and on the $MyINFO/$Lock/$Key
// handshake documented across the NMDC hub examples in the pack.
type nmdcHub struct {
	u    *url.URL
	opts Options
	log  logging.Logger

	conn net.Conn
	r    *bufio.Reader

	mu      sync.Mutex
	hubName string
	nickToCID map[string]adc.CID
}

func newNMDCHub(u *url.URL, opts Options) *nmdcHub {
	return &nmdcHub{u: u, opts: opts, log: logging.New("hub.nmdc"), nickToCID: make(map[string]adc.CID)}
}

func (h *nmdcHub) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: h.opts.DialTimeout}
	if h.opts.DialTimeout == 0 {
		d.Timeout = 30 * time.Second
	}
	var conn net.Conn
	var err error
	if h.u.Scheme == "nmdcs" {
		conn, err = tls.DialWithDialer(&d, "tcp", h.u.Host, &tls.Config{InsecureSkipVerify: true})
	} else {
		conn, err = d.DialContext(ctx, "tcp", h.u.Host)
	}
	if err != nil {
		return err
	}
	h.conn = conn
	h.r = bufio.NewReader(conn)
	return nil
}

func (h *nmdcHub) handshake(ctx context.Context, s *Session) error {
	lock, err := h.readCmd()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(lock, "$Lock ") {
		return fmt.Errorf("nmdc: expected $Lock, got %q", lock)
	}
	key := nmdcLockToKey(strings.TrimPrefix(lock, "$Lock "))

	if err := h.writeCmd(fmt.Sprintf("$Supports NoGetINFO NoHello UserCommand TTHSearch ADCGet")); err != nil {
		return err
	}
	if err := h.writeCmd(fmt.Sprintf("$Key %s", key)); err != nil {
		return err
	}
	if err := h.writeCmd(fmt.Sprintf("$ValidateNick %s", h.opts.Nick)); err != nil {
		return err
	}

	for {
		line, err := h.readCmd()
		if err != nil {
			return err
		}
		switch {
		case strings.HasPrefix(line, "$Hello "):
			nick := strings.TrimPrefix(line, "$Hello ")
			if nick == h.opts.Nick {
				if err := h.writeCmd("$Version 1,0091"); err != nil {
					return err
				}
				if err := h.writeCmd(h.myINFOLine()); err != nil {
					return err
				}
				if err := h.writeCmd("$GetNickList"); err != nil {
					return err
				}
			} else {
				h.applyMyINFO(s, "$MyINFO $ALL "+nick+" |") // placeholder roster entry until its own MyINFO arrives
			}
		case strings.HasPrefix(line, "$MyINFO "):
			h.applyMyINFO(s, line)
		case strings.HasPrefix(line, "$HubName "):
			h.mu.Lock()
			h.hubName = strings.TrimPrefix(line, "$HubName ")
			h.mu.Unlock()
		case strings.HasPrefix(line, "$LogedIn") || strings.HasPrefix(line, "$NickList") && strings.Contains(line, h.opts.Nick):
			return nil
		case strings.HasPrefix(line, "$ValidateDenide") || strings.HasPrefix(line, "$HubIsFull"):
			return fmt.Errorf("nmdc: hub rejected login: %s", line)
		}
		// NMDC has no explicit end-of-handshake marker beyond receiving our
		// own MyINFO echoed back; treat that as entry into NORMAL.
		if strings.HasPrefix(line, "$MyINFO $ALL "+h.opts.Nick+" ") {
			return nil
		}
	}
}

func (h *nmdcHub) myINFOLine() string {
	return fmt.Sprintf("$MyINFO $ALL %s %s<airdcpp-go V:0.1,M:%s,H:1/0/0,S:%d>$ $100$%s$%d$",
		h.opts.Nick, h.opts.Description, nmdcModeChar(h.opts.TCPPort), h.opts.Slots, h.opts.Email, h.opts.ShareSize)
}

func nmdcModeChar(tcpPort uint16) string {
	if tcpPort != 0 {
		return "A"
	}
	return "P"
}

func (h *nmdcHub) applyMyINFO(s *Session, line string) {
	// "$MyINFO $ALL <nick> <desc>$ $<speed><flag>$<email>$<share>$"
	rest := strings.TrimPrefix(line, "$MyINFO $ALL ")
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return
	}
	nick := rest[:sp]
	cid := adc.NMDCSyntheticCID(nick, h.u.String())
	h.mu.Lock()
	h.nickToCID[nick] = cid
	h.mu.Unlock()

	ou := s.upsertUser(cid, func(u *identity.User) *identity.Identity {
		u.SetFlag(identity.FlagNMDC)
		return identity.NewIdentity(u, adc.SID{})
	})
	ou.Set("NI", nick)
}

func (h *nmdcHub) readLoop(ctx context.Context, s *Session) {
	for {
		line, err := h.readCmd()
		if err != nil {
			h.log.Debugf("read loop ended: %v", err)
			return
		}
		switch {
		case strings.HasPrefix(line, "$MyINFO "):
			h.applyMyINFO(s, line)
		case strings.HasPrefix(line, "$Quit "):
			nick := strings.TrimPrefix(line, "$Quit ")
			h.mu.Lock()
			cid, ok := h.nickToCID[nick]
			delete(h.nickToCID, nick)
			h.mu.Unlock()
			if ok {
				s.removeUser(cid)
			}
		case strings.HasPrefix(line, "$To: "):
			h.deliverPrivateMessage(s, line)
		case strings.HasPrefix(line, "<"):
			h.deliverMainChatMessage(s, line)
		case strings.HasPrefix(line, "$SR "):
			h.log.Debugf("search result: %s", line)
		case strings.HasPrefix(line, "$ConnectToMe ") || strings.HasPrefix(line, "$RevConnectToMe "):
			h.log.Debugf("connect request: %s", line)
		}
	}
}

// deliverPrivateMessage parses "$To: <mynick> From: <nick> $<<nick>> text"
// and routes it through Session.deliverChatMessage.
func (h *nmdcHub) deliverPrivateMessage(s *Session, line string) {
	rest := strings.TrimPrefix(line, "$To: ")
	idx := strings.Index(rest, "From: ")
	if idx < 0 {
		return
	}
	rest = rest[idx+len("From: "):]
	dollar := strings.IndexByte(rest, '$')
	if dollar < 0 {
		return
	}
	nick := strings.TrimSpace(rest[:dollar])
	text := rest[dollar:]
	if close := strings.IndexByte(text, '>'); close >= 0 {
		text = strings.TrimPrefix(text[close+1:], " ")
	}

	h.mu.Lock()
	cid, ok := h.nickToCID[nick]
	h.mu.Unlock()
	if !ok {
		h.log.Debugf("private message from unknown nick %q", nick)
		return
	}
	s.deliverChatMessage(ChatMessage{From: cid, Text: text, Private: true})
}

// deliverMainChatMessage parses "<nick> text" main-chat lines.
func (h *nmdcHub) deliverMainChatMessage(s *Session, line string) {
	close := strings.IndexByte(line, '>')
	if !strings.HasPrefix(line, "<") || close < 0 {
		return
	}
	nick := line[1:close]
	text := strings.TrimPrefix(line[close+1:], " ")

	h.mu.Lock()
	cid, ok := h.nickToCID[nick]
	h.mu.Unlock()
	if !ok {
		return
	}
	s.deliverChatMessage(ChatMessage{From: cid, Text: text})
}

func (h *nmdcHub) sendHubMessage(text string) {
	_ = h.writeCmd(fmt.Sprintf("<%s> %s", h.opts.Nick, text))
}

func (h *nmdcHub) sendPrivateMessage(to adc.CID, text string) {
	nick := h.nickForCID(to)
	if nick == "" {
		return
	}
	_ = h.writeCmd(fmt.Sprintf("$To: %s From: %s $<%s> %s", nick, h.opts.Nick, h.opts.Nick, text))
}

func (h *nmdcHub) nickForCID(cid adc.CID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for nick, c := range h.nickToCID {
		if c == cid {
			return nick
		}
	}
	return ""
}

func (h *nmdcHub) queueSearch(q SearchQuery) error {
	sizeRestrict := 0
	size := q.SizeMin
	if q.SizeMax > 0 {
		sizeRestrict = 2
		size = q.SizeMax
	} else if q.SizeMin > 0 {
		sizeRestrict = 1
	}
	pattern := strings.ReplaceAll(q.Pattern, " ", "$")
	if q.TTH != "" {
		pattern = "TTH:" + q.TTH
	}
	return h.writeCmd(fmt.Sprintf("$Search Hub:%s %d?%d?%d?%d?%s",
		h.opts.Nick, boolToInt(q.TTH != ""), sizeRestrict, size, q.FileType, pattern))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (h *nmdcHub) cancelSearch(token string) {}

func (h *nmdcHub) connectToUser(cid adc.CID) error {
	nick := h.nickForCID(cid)
	if nick == "" {
		return fmt.Errorf("nmdc: unknown user")
	}
	if h.opts.TCPPort != 0 {
		return h.writeCmd(fmt.Sprintf("$ConnectToMe %s %d", nick, h.opts.TCPPort))
	}
	return h.writeCmd(fmt.Sprintf("$RevConnectToMe %s %s", h.opts.Nick, nick))
}

func (h *nmdcHub) close() {
	if h.conn != nil {
		h.conn.Close()
	}
}

func (h *nmdcHub) name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hubName
}

func (h *nmdcHub) ownNick() string  { return h.opts.Nick }
func (h *nmdcHub) encoding() string { return "cp1252" }

func (h *nmdcHub) writeCmd(s string) error {
	_, err := h.conn.Write([]byte(s + "|"))
	return err
}

func (h *nmdcHub) readCmd() (string, error) {
	line, err := h.r.ReadString('|')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "|"), nil
}

// nmdcLockToKey implements the classic NMDC $Lock -> $Key XOR/shift cipher.
func nmdcLockToKey(lock string) string {
	lockField := lock
	if sp := strings.IndexByte(lock, ' '); sp >= 0 {
		lockField = lock[:sp]
	}
	l := []byte(lockField)
	key := make([]byte, len(l))
	key[0] = l[0] ^ l[len(l)-1] ^ l[len(l)-2] ^ 5
	for i := 1; i < len(l); i++ {
		key[i] = l[i] ^ l[i-1]
	}
	for i := range key {
		v := key[i]
		key[i] = ((v << 4) | (v >> 4)) & 0xff
	}
	var b strings.Builder
	for _, c := range key {
		switch c {
		case 0, 5, 36, 96, 124, 126:
			b.WriteString(fmt.Sprintf("/%%DCN%03d%%/", c))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
