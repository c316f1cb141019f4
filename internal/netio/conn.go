// Package netio provides buffered, optionally rate-limited connection
// plumbing: delimiter-framed line reads for NMDC/ADC command parsing and
// chunked fixed-length reads and writes for the binary transfer phase. Every
// call runs synchronously on the caller's goroutine; there is no background
// reader. internal/hub and internal/connmgr do their own socket I/O and do
// not import this package. Grounded on the teacher's peerconn/peerreader split
// (torrent/internal/peerconn/peerreader) adapted from bittorrent wire
// messages to DC line/binary framing.
package netio

import (
	"bufio"
	"context"
	"net"

	"github.com/airdcpp-go/client/internal/ratelimit"
)

// Conn wraps a net.Conn with buffered I/O and an optional rate limiter
// applied to both directions, the single seam every transfer byte passes
// through.
type Conn struct {
	net.Conn
	r *bufio.Reader
	w *bufio.Writer

	readLimiter  *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter
}

func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c, r: bufio.NewReader(c), w: bufio.NewWriter(c)}
}

func (c *Conn) SetReadLimiter(l *ratelimit.Limiter)  { c.readLimiter = l }
func (c *Conn) SetWriteLimiter(l *ratelimit.Limiter) { c.writeLimiter = l }

// ReadLine reads up to and including delim, stripping it, for NMDC's '|'
// framing and ADC's '\n' framing alike.
func (c *Conn) ReadLine(delim byte) (string, error) {
	line, err := c.r.ReadString(delim)
	if err != nil {
		return "", err
	}
	return line[:len(line)-1], nil
}

// ReadFull reads exactly len(buf) bytes, rate-limited in chunks so a single
// huge read can't starve the limiter's burst budget for other connections.
func (c *Conn) ReadFull(ctx context.Context, buf []byte) (int, error) {
	const chunk = 64 * 1024
	n := 0
	for n < len(buf) {
		end := n + chunk
		if end > len(buf) {
			end = len(buf)
		}
		if c.readLimiter != nil {
			if err := c.readLimiter.WaitN(ctx, end-n); err != nil {
				return n, err
			}
		}
		m, err := c.r.Read(buf[n:end])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteChunked writes buf in rate-limited chunks, flushing at the end.
func (c *Conn) WriteChunked(ctx context.Context, buf []byte) (int, error) {
	const chunk = 64 * 1024
	n := 0
	for n < len(buf) {
		end := n + chunk
		if end > len(buf) {
			end = len(buf)
		}
		if c.writeLimiter != nil {
			if err := c.writeLimiter.WaitN(ctx, end-n); err != nil {
				return n, err
			}
		}
		m, err := c.w.Write(buf[n:end])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, c.w.Flush()
}

func (c *Conn) WriteLine(s string) error {
	if _, err := c.w.WriteString(s); err != nil {
		return err
	}
	return c.w.Flush()
}
