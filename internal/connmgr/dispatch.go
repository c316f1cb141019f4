package connmgr

import (
	"context"
	"net"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/logging"
	"github.com/airdcpp-go/client/internal/queue"
	"github.com/airdcpp-go/client/internal/upload"
)

// MaxOutgoingDial bounds simultaneous outgoing C-C dials, the DC analogue
// of the teacher's MaxPeerDial cap in session/run.go's dialAddresses.
const MaxOutgoingDial = 8

// Manager is the single-threaded task dispatcher of spec.md §5: one
// goroutine processes connection lifecycle events and periodic
// download-assignment ticks serially, so queue/upload state never needs
// its own lock beyond what internal/queue and internal/upload already
// provide for concurrent readers.
type Manager struct {
	log logging.Logger

	tokens *TokenStore
	queue  *queue.Manager
	upload *upload.Manager
	rebal  *upload.Rebalancer

	myCID adc.CID

	dialSemaphore chan struct{}

	connsByCID map[adc.CID][]*PeerConn

	cmdC  chan func()
	stopC chan struct{}
	doneC chan struct{}
}

func NewManager(myCID adc.CID, q *queue.Manager, up *upload.Manager) *Manager {
	return &Manager{
		log:           logging.New("connmgr"),
		tokens:        NewTokenStore(),
		queue:         q,
		upload:        up,
		rebal:         upload.NewRebalancer(),
		myCID:         myCID,
		dialSemaphore: make(chan struct{}, MaxOutgoingDial),
		connsByCID:    make(map[adc.CID][]*PeerConn),
		cmdC:          make(chan func(), 256),
		stopC:         make(chan struct{}),
		doneC:         make(chan struct{}),
	}
}

// Run is the dispatcher's single goroutine: it drains cmdC and fires the
// download-assignment tick, never touching connection or queue state from
// any other goroutine directly (handlers post closures onto cmdC instead).
func (m *Manager) Run(ctx context.Context, assignInterval time.Duration) {
	defer close(m.doneC)
	t := time.NewTicker(assignInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopC:
			return
		case fn := <-m.cmdC:
			fn()
		case <-t.C:
			m.assignDownloads()
		}
	}
}

func (m *Manager) Stop() {
	select {
	case <-m.stopC:
	default:
		close(m.stopC)
	}
	<-m.doneC
}

// Post queues fn to run on the dispatcher goroutine.
func (m *Manager) Post(fn func()) {
	m.cmdC <- fn
}

// HandleInbound completes the handshake for a freshly accepted conn and
// posts the result onto the dispatcher.
func (m *Manager) HandleInbound(conn net.Conn) {
	pc, err := HandshakeInbound(conn, m.myCID, 30*time.Second)
	if err != nil {
		m.log.Debugf("inbound handshake failed: %v", err)
		conn.Close()
		return
	}
	m.Post(func() { m.registerConn(pc) })
}

func (m *Manager) registerConn(pc *PeerConn) {
	m.connsByCID[pc.PeerCID] = append(m.connsByCID[pc.PeerCID], pc)
	m.log.Debugf("registered connection from %s", pc.PeerCID)
}

func (m *Manager) dropConn(pc *PeerConn) {
	list := m.connsByCID[pc.PeerCID]
	for i, c := range list {
		if c == pc {
			m.connsByCID[pc.PeerCID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	pc.Close()
}

// assignDownloads implements the periodic download-assignment loop of
// spec.md §4.4.3: for every source with an idle connection and a free
// standard-slot-equivalent download budget, pick the next segment via
// internal/queue.NextSegment and mark it assigned. Actual byte transfer
// happens on the connection's own goroutine (not modeled here); this loop
// only owns the "what should start next" decision, serialized through the
// single dispatcher goroutine so two ticks never double-assign the same
// range.
func (m *Manager) assignDownloads() {
	for cid, conns := range m.connsByCID {
		idle := idleConn(conns)
		if idle == nil {
			continue
		}
		files := m.queue.FilesForUser(cid)
		for _, f := range files {
			src, ok := f.Source(cid)
			if !ok || src.BadSource || !src.Online {
				continue
			}
			seg, ok := queue.NextSegment(f.Size, f.DoneSegments(), src.AssignedSegments(), src, defaultSegmentSize, false)
			if !ok {
				continue
			}
			m.queue.AssignSegment(src, seg)
			idle.State = CCStateSend
			m.log.Debugf("assigned %s[%d:%d] to %s", f.Target, seg.Start, seg.End(), cid)
			break
		}
	}
}

const defaultSegmentSize = 16 * 1024 * 1024

func idleConn(conns []*PeerConn) *PeerConn {
	for _, c := range conns {
		if c.State == CCStateIdle {
			return c
		}
	}
	return nil
}
