package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/xerrors"
)

func baseLimits() Limits {
	return Limits{
		MaxSlots:           1,
		ExtraSlots:         1,
		ExtraPartialSlots:  1,
		MaxSmallFileSlots:  1,
		MiniSlotSize:       64 * 1024,
		MaxMCNConnsPerUser: 1,
	}
}

func TestGrantFillsStandardFirst(t *testing.T) {
	m := NewManager(baseLimits())
	class, err := m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})
	require.NoError(t, err)
	assert.Equal(t, SlotStandard, class)
}

func TestGrantFallsBackToMCNWhenStandardFull(t *testing.T) {
	m := NewManager(baseLimits())
	cid := adc.CID{1}
	_, err := m.Grant(Request{CID: cid, FileSize: 10 << 20})
	require.NoError(t, err)

	class, err := m.Grant(Request{CID: cid, FileSize: 10 << 20, UserHasSlot: true})
	require.NoError(t, err)
	assert.Equal(t, SlotMCN, class)
}

func TestGrantSmallFileChannelBeforeStandardFull(t *testing.T) {
	m := NewManager(baseLimits())
	class, err := m.Grant(Request{CID: adc.CID{1}, FileSize: 1024})
	require.NoError(t, err)
	assert.Equal(t, SlotSmall, class)
	// standard pool is untouched by the small-file channel.
	assert.Equal(t, 1, m.StandardSlotsFree())
}

func TestGrantMiniSlotRequiresPeerSupport(t *testing.T) {
	limits := baseLimits()
	limits.MaxSmallFileSlots = 0
	m := NewManager(limits)
	_, _ = m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})

	// No MiniSlots support advertised: falls through to NOSLOT since the
	// small/standard/MCN/partial/grace pools are all exhausted or ineligible.
	_, err := m.Grant(Request{CID: adc.CID{2}, FileSize: 1024, MiniSlotEligible: true})
	assert.ErrorIs(t, err, xerrors.ErrNoSlotAvailable)

	class, err := m.Grant(Request{CID: adc.CID{3}, FileSize: 1024, MiniSlotEligible: true, PeerSupportsMiniSlots: true})
	require.NoError(t, err)
	assert.Equal(t, SlotMini, class)
}

func TestGrantMiniSlotBoundedByExtraSlots(t *testing.T) {
	limits := baseLimits()
	limits.MaxSmallFileSlots = 0
	limits.ExtraSlots = 1
	m := NewManager(limits)
	_, _ = m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20}) // fills the one standard slot

	req := Request{FileSize: 1024, MiniSlotEligible: true, PeerSupportsMiniSlots: true}
	req.CID = adc.CID{2}
	class, err := m.Grant(req)
	require.NoError(t, err)
	assert.Equal(t, SlotMini, class)

	req.CID = adc.CID{3}
	_, err = m.Grant(req)
	assert.ErrorIs(t, err, xerrors.ErrNoSlotAvailable)
}

func TestGrantReservedBypassesStandardPool(t *testing.T) {
	m := NewManager(baseLimits())
	_, _ = m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})

	class, err := m.Grant(Request{CID: adc.CID{2}, FileSize: 10 << 20, IsReserved: true})
	require.NoError(t, err)
	assert.Equal(t, SlotStandard, class)
}

func TestGrantLowSpeedGraceSlotOncePerCooldown(t *testing.T) {
	limits := baseLimits()
	limits.MaxSmallFileSlots = 0
	limits.SpeedLimitBps = 1 << 20
	m := NewManager(limits)
	_, _ = m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})
	m.UpdateSpeed(0)

	class, err := m.Grant(Request{CID: adc.CID{2}, FileSize: 10 << 20})
	require.NoError(t, err)
	assert.Equal(t, SlotStandard, class)

	_, err = m.Grant(Request{CID: adc.CID{3}, FileSize: 10 << 20})
	assert.ErrorIs(t, err, xerrors.ErrNoSlotAvailable)

	m.lastGraceSlot = time.Now().Add(-graceSlotCooldown)
	class, err = m.Grant(Request{CID: adc.CID{4}, FileSize: 10 << 20})
	require.NoError(t, err)
	assert.Equal(t, SlotStandard, class)
}

func TestGrantReturnsErrNoSlotWhenExhausted(t *testing.T) {
	limits := Limits{MaxSlots: 0, ExtraSlots: 0, ExtraPartialSlots: 0, MaxSmallFileSlots: 0, MiniSlotSize: 0, MaxMCNConnsPerUser: 0}
	m := NewManager(limits)
	_, err := m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})
	assert.ErrorIs(t, err, xerrors.ErrNoSlotAvailable)
}

func TestGrantVetoedBySlotTypeHook(t *testing.T) {
	m := NewManager(baseLimits())
	m.SlotTypeHook.Subscribe("test", func(req Request) error {
		return xerrors.NewRejection("slot_type", "blocked", "no")
	})
	_, err := m.Grant(Request{CID: adc.CID{1}, FileSize: 10 << 20})
	assert.Error(t, err)
}

func TestReleaseFreesStandardSlot(t *testing.T) {
	m := NewManager(baseLimits())
	cid := adc.CID{1}
	_, _ = m.Grant(Request{CID: cid, FileSize: 10 << 20})
	assert.Equal(t, 0, m.StandardSlotsFree())

	m.Release(cid, SlotStandard)
	assert.Equal(t, 1, m.StandardSlotsFree())
}
