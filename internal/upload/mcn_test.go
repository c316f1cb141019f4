package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestPickVictimReturnsSlowestConnection(t *testing.T) {
	r := NewRebalancer()
	cid := adc.CID{1}
	r.Track(MCNConn{CID: cid, Token: "fast", SpeedBps: 500000})
	r.Track(MCNConn{CID: cid, Token: "slow", SpeedBps: 1000})
	r.Track(MCNConn{CID: cid, Token: "mid", SpeedBps: 50000})

	victim, ok := r.PickVictim(cid)
	require.True(t, ok)
	assert.Equal(t, "slow", victim)
}

func TestPickVictimNoConnsReturnsFalse(t *testing.T) {
	r := NewRebalancer()
	_, ok := r.PickVictim(adc.CID{9})
	assert.False(t, ok)
}

func TestUntrackRemovesConnAndEmptiesMap(t *testing.T) {
	r := NewRebalancer()
	cid := adc.CID{1}
	r.Track(MCNConn{CID: cid, Token: "only", SpeedBps: 100})
	assert.Equal(t, 1, r.Count(cid))

	r.Untrack(cid, "only")
	assert.Equal(t, 0, r.Count(cid))
	_, ok := r.PickVictim(cid)
	assert.False(t, ok)
}

func TestUpdateSpeedAffectsVictimChoice(t *testing.T) {
	r := NewRebalancer()
	cid := adc.CID{1}
	r.Track(MCNConn{CID: cid, Token: "a", SpeedBps: 100})
	r.Track(MCNConn{CID: cid, Token: "b", SpeedBps: 200})

	r.UpdateSpeed(cid, "a", 999999)

	victim, ok := r.PickVictim(cid)
	require.True(t, ok)
	assert.Equal(t, "b", victim)
}
