package connmgr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreResolveDeliversConn(t *testing.T) {
	ts := NewTokenStore()
	tok, ch := ts.New()

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	require.NoError(t, ts.Resolve(tok, c1))
	got := <-ch
	assert.Same(t, c1, got)
	_ = c2
}

func TestTokenStoreResolveUnknownTokenErrors(t *testing.T) {
	ts := NewTokenStore()
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	err := ts.Resolve("nope", c1)
	assert.Error(t, err)
}

func TestTokenStoreCancelRemovesWaiter(t *testing.T) {
	ts := NewTokenStore()
	tok, _ := ts.New()
	ts.Cancel(tok)

	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	err := ts.Resolve(tok, c1)
	assert.Error(t, err)
}

func TestTokenStoreNewTokensAreUnique(t *testing.T) {
	ts := NewTokenStore()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		tok, _ := ts.New()
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
