package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestProgressPriorityForPctSteps(t *testing.T) {
	assert.Equal(t, PriorityLow, progressPriorityForPct(0))
	assert.Equal(t, PriorityLow, progressPriorityForPct(0.19))
	assert.Equal(t, PriorityNormal, progressPriorityForPct(0.2))
	assert.Equal(t, PriorityNormal, progressPriorityForPct(0.49))
	assert.Equal(t, PriorityHigh, progressPriorityForPct(0.5))
	assert.Equal(t, PriorityHigh, progressPriorityForPct(0.79))
	assert.Equal(t, PriorityHighest, progressPriorityForPct(0.8))
	assert.Equal(t, PriorityHighest, progressPriorityForPct(1.0))
}

func TestAssignProgressPrioritiesIsAbsoluteNotRelative(t *testing.T) {
	m := NewManager(t.TempDir())
	// A single bundle sitting at 90% done must land on HIGHEST regardless of
	// there being no other bundle to rank against.
	b, err := m.AddFile("tok", "a.bin", 100, "TTH")
	assert.NoError(t, err)
	_ = b
	f, _ := m.FileByToken("tok")
	f.MarkDone(Segment{Start: 0, Size: 90})

	m.RunAutoPriority(ModeProgress, 0, time.Now())
	bundle, _ := m.BundleByToken("tok")
	assert.Equal(t, PriorityHighest, bundle.GetPriority())
}

func TestAssignBalancedPrioritiesUsesPointsFormula(t *testing.T) {
	fast := NewBundle("fast", "/fast")
	fast.AutoPriority = true
	slow := NewBundle("slow", "/slow")
	slow.AutoPriority = true
	idle := NewBundle("idle", "/idle")
	idle.AutoPriority = true

	fast.AddSpeedSample(1 << 20)
	fast.TickSpeeds()
	slow.AddSpeedSample(1 << 10)
	slow.TickSpeeds()

	fFile := NewQueueFile("f", "/fast/f", 100, "T1")
	fFile.AddSource(&Source{CID: adc.CID{1}, Online: true})
	fFile.AddSource(&Source{CID: adc.CID{2}, Online: true})
	fast.AddFile(fFile)

	sFile := NewQueueFile("s", "/slow/s", 100, "T2")
	sFile.AddSource(&Source{CID: adc.CID{3}, Online: true})
	slow.AddFile(sFile)

	iFile := NewQueueFile("i", "/idle/i", 100, "T3")
	idle.AddFile(iFile)

	assignBalancedPriorities([]*Bundle{fast, slow, idle})

	assert.Equal(t, PriorityHigh, fast.GetPriority())
	assert.Equal(t, PriorityLow, idle.GetPriority())
}

func TestAddFileDemotesHighestInPausedForceBundle(t *testing.T) {
	b := NewBundle("tok", "/dir")
	b.SetPriority(PriorityPausedForce)

	f := NewQueueFile("f", "/dir/f", 100, "TTH")
	f.Priority = PriorityHighest
	b.AddFile(f)

	assert.Equal(t, PriorityHigh, f.Priority)
}

func TestAddFileLeavesPriorityAloneWhenNotForced(t *testing.T) {
	b := NewBundle("tok", "/dir")
	f := NewQueueFile("f", "/dir/f", 100, "TTH")
	f.Priority = PriorityHighest
	b.AddFile(f)

	assert.Equal(t, PriorityHighest, f.Priority)
}

func TestSetAutoPriorityForcesLowFromPaused(t *testing.T) {
	b := NewBundle("tok", "/dir")
	b.SetPriority(PriorityPaused)
	b.SetAutoPriority(true)
	assert.Equal(t, PriorityLow, b.GetPriority())
}

func TestSetAutoPriorityLeavesPausedForceAlone(t *testing.T) {
	b := NewBundle("tok", "/dir")
	b.SetPriority(PriorityPausedForce)
	b.SetAutoPriority(true)
	assert.Equal(t, PriorityPausedForce, b.GetPriority())
}
