package connmgr

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/airdcpp-go/client/internal/logging"
	"github.com/airdcpp-go/client/internal/ratelimit"
)

// Listener accepts inbound C-C connections on one TCP or TLS port and hands
// each to a handler, with flood control on the remote IP applied before any
// protocol bytes are read.
type Listener struct {
	ln    net.Listener
	flood *ratelimit.FloodCounter
	log   logging.Logger

	handle func(net.Conn)
}

func Listen(addr string, tlsConf *tls.Config, flood *ratelimit.FloodCounter, handle func(net.Conn)) (*Listener, error) {
	var ln net.Listener
	var err error
	if tlsConf != nil {
		ln, err = tls.Listen("tcp", addr, tlsConf)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, flood: flood, log: logging.New("connmgr.listener"), handle: handle}, nil
}

// Run accepts connections until ctx is cancelled, rejecting an address
// that's tripped the severe flood threshold before calling handle.
func (l *Listener) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Debugf("accept: %v", err)
			continue
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if l.flood != nil {
			if sev := l.flood.AddOne(host, time.Now()); sev == ratelimit.FloodSevere {
				l.log.Warningf("dropping connection from flooding address %s", host)
				conn.Close()
				continue
			}
		}
		go l.handle(conn)
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
