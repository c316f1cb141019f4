package connmgr

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/logging"
)

// CCState is the per-connection state machine spec.md §4.4.2 names for the
// inbound C-C handshake (outbound mirrors it after swapping who speaks
// first): SUP/NICK exchange, then INF identification, then either an idle
// keepalive connection awaiting GET/SCH/etc, or immediately serving a
// request if the opener piggybacked one.
type CCState int

const (
	CCStateSupNick CCState = iota
	CCStateInf
	CCStateIdle
	CCStateSend
)

// PeerConn is one live client-to-client connection, ADC or NMDC, past the
// initial handshake.
type PeerConn struct {
	conn net.Conn
	r    *bufio.Reader
	log  logging.Logger

	IsADC   bool
	PeerCID adc.CID
	State   CCState
	Token   string // the CTM/RCM token that established this connection

	lastActivity time.Time
}

// HandshakeInbound drives CCStateSupNick -> CCStateInf for a freshly
// accepted connection, detecting ADC vs NMDC from the first line the way a
// real C-C acceptor must (ADC opens with "CSUP", NMDC with "$MyNick").
//
// Grounded on other_examples/bfac2a82_..._hub_adc.go.go's
// adcStageProtocol/adcStageIdentity staging, adapted from hub-side to
// peer-to-peer (no SID assignment; identification is by CID alone, per
// spec.md §4.4).
func HandshakeInbound(conn net.Conn, myCID adc.CID, timeout time.Duration) (*PeerConn, error) {
	conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	r := bufio.NewReader(conn)
	pc := &PeerConn{conn: conn, r: r, log: logging.New("connmgr.peerconn"), State: CCStateSupNick, lastActivity: time.Now()}

	peek, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	delim := byte('\n')
	if peek[0] == '$' {
		delim = '|'
	}
	first, err := r.ReadString(delim)
	if err != nil {
		return nil, err
	}
	first = strings.TrimRight(first, "\r\n|")

	if strings.HasPrefix(first, "CSUP") || strings.HasPrefix(first, "C") {
		pc.IsADC = true
		if err := pc.adcHandshake(first, myCID); err != nil {
			return nil, err
		}
	} else if strings.HasPrefix(first, "$MyNick") {
		pc.IsADC = false
		if err := pc.nmdcHandshake(first); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("connmgr: unrecognized C-C preamble %q", first)
	}
	pc.State = CCStateIdle
	return pc, nil
}

func readUntilPipe(r *bufio.Reader) (string, error) {
	return r.ReadString('|')
}

func (pc *PeerConn) adcHandshake(firstLine string, myCID adc.CID) error {
	sup, err := adc.Parse(firstLine, false)
	if err != nil || sup.Name != "SUP" {
		return fmt.Errorf("connmgr: expected CSUP, got %q", firstLine)
	}
	resp := &adc.Command{Type: adc.ClientToClient, Name: "SUP"}
	resp.AddPositional("ADBASE")
	resp.AddPositional("ADTIGR")
	if err := pc.writeLine(resp.String()); err != nil {
		return err
	}

	infLine, err := pc.readLine()
	if err != nil {
		return err
	}
	inf, err := adc.Parse(infLine, false)
	if err != nil || inf.Name != "INF" {
		return fmt.Errorf("connmgr: expected CINF, got %q", infLine)
	}
	idStr, _ := inf.GetParam("ID", 0)
	cid, err := adc.ParseCID(idStr)
	if err != nil {
		return fmt.Errorf("connmgr: bad CID in CINF: %w", err)
	}
	pc.PeerCID = cid
	tok, _ := inf.GetParam("TO", 0)
	pc.Token = tok

	ownInf := &adc.Command{Type: adc.ClientToClient, Name: "INF"}
	ownInf.AddParam("ID", myCID.String())
	return pc.writeLine(ownInf.String())
}

func (pc *PeerConn) nmdcHandshake(firstLine string) error {
	nick := strings.TrimPrefix(firstLine, "$MyNick ")
	if err := pc.writeLine("$Lock EXTENDEDPROTOCOLABCABCABCABCABCABC Pk=airdcpp-go"); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		line, err := pc.readLine()
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "$Key ") {
			break
		}
		_ = line
	}
	// NMDC C-C has no CID; the caller resolves identity from the nick via
	// internal/identity.NMDCSyntheticCID once it knows which hub this nick
	// belongs to.
	pc.Token = nick
	return nil
}

func (pc *PeerConn) writeLine(s string) error {
	var err error
	if pc.IsADC {
		_, err = pc.conn.Write([]byte(s + "\n"))
	} else {
		_, err = pc.conn.Write([]byte(s + "|"))
	}
	return err
}

func (pc *PeerConn) readLine() (string, error) {
	delim := byte('\n')
	if !pc.IsADC {
		delim = '|'
	}
	line, err := pc.r.ReadString(delim)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n|"), nil
}

func (pc *PeerConn) Close() error { return pc.conn.Close() }
