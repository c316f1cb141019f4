// Package connmgr implements the client-to-client connection manager of
// spec.md §4.4: the token store for outstanding CTM/RCM exchanges, TCP/TLS
// listeners, the ADC/NMDC C-C handshake state machine, MCN fan-out
// dispatch, and the periodic download-assignment loop that pairs queued
// segments with idle source connections.
//
// Grounded on other_examples/4a840276_..._client2hub.go.go's revConnToken
// map (token generation/lookup/collision retry under a dedicated mutex) and
// on the teacher's dialAddresses/MaxPeerDial bound (session/run.go) for the
// outgoing-connection concurrency cap.
package connmgr

import (
	"net"
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/airdcpp-go/client/internal/search"
	"github.com/airdcpp-go/client/internal/xerrors"
)

// maxCollisionRetries bounds how many times New tries search.NewToken's
// math/rand source before falling back to a UUID, the way the teacher's
// session.go falls back to a fresh uuid.NewV1() torrent id rather than
// looping forever on a pathological collision run.
const maxCollisionRetries = 8

// TokenStore tracks tokens we've issued for outgoing CTM/RCM requests,
// resolving the eventual inbound connection back to the right waiter.
// Grounded on revConnToken's spinlock-protected map.
type TokenStore struct {
	mu      sync.Mutex
	waiting map[string]chan net.Conn
}

func NewTokenStore() *TokenStore {
	return &TokenStore{waiting: make(map[string]chan net.Conn)}
}

// New generates and registers a fresh token, retrying on the rare collision
// the way revConnToken does.
func (t *TokenStore) New() (string, chan net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok := search.NewToken()
	for attempt := 0; ; attempt++ {
		if _, exists := t.waiting[tok]; !exists {
			break
		}
		if attempt >= maxCollisionRetries {
			tok = strings.ReplaceAll(uuid.NewV4().String(), "-", "")
			break
		}
		tok = search.NewToken()
	}
	ch := make(chan net.Conn, 1)
	t.waiting[tok] = ch
	return tok, ch
}

// Resolve delivers conn to the waiter for token, if any, and removes the
// entry. Returns ErrTokenNotFound if nobody is waiting (a stray/late CTM).
func (t *TokenStore) Resolve(token string, conn net.Conn) error {
	t.mu.Lock()
	ch, ok := t.waiting[token]
	if ok {
		delete(t.waiting, token)
	}
	t.mu.Unlock()
	if !ok {
		return xerrors.ErrTokenNotFound
	}
	ch <- conn
	return nil
}

// Cancel removes a token without resolving it, e.g. on dial timeout.
func (t *TokenStore) Cancel(token string) {
	t.mu.Lock()
	delete(t.waiting, token)
	t.mu.Unlock()
}
