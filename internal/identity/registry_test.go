package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry()
	cid := adc.CID{1, 2, 3}
	u1 := r.GetOrCreate(cid)
	u2 := r.GetOrCreate(cid)
	assert.Same(t, u1, u2)
}

func TestMarkOfflineThenLookup(t *testing.T) {
	r := NewRegistry()
	cid := adc.CID{9}
	r.MarkOffline(cid, "nick", "adc://hub")
	o, ok := r.LookupOffline(cid)
	require.True(t, ok)
	assert.Equal(t, "nick", o.Nick)
}

func TestDeriveConnectModePrefersV4(t *testing.T) {
	assert.Equal(t, ModeActiveV4, DeriveConnectMode(true, true, "1.2.3.4", "::1"))
	assert.Equal(t, ModeActiveV6, DeriveConnectMode(false, true, "", "::1"))
	assert.Equal(t, ModePassive, DeriveConnectMode(false, false, "", ""))
}

func TestSweepRemovesStaleOfflineUsers(t *testing.T) {
	r := NewRegistry()
	r.gcMaxAge = time.Millisecond
	cid := adc.CID{5}
	r.MarkOffline(cid, "n", "h")
	time.Sleep(5 * time.Millisecond)
	r.sweep()
	_, ok := r.LookupOffline(cid)
	assert.False(t, ok)
}
