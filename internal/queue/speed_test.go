package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestSpeedBpsZeroForUntouchedBundle(t *testing.T) {
	b := NewBundle("tok", "/dir")
	assert.Equal(t, 0.0, b.SpeedBps())
}

func TestSpeedBpsRisesAfterSamplesAndTicks(t *testing.T) {
	b := NewBundle("tok", "/dir")
	for i := 0; i < 20; i++ {
		b.AddSpeedSample(1 << 20)
		b.TickSpeeds()
	}
	assert.Greater(t, b.SpeedBps(), 0.0)
}

func TestSourceCountCountsDistinctOnlineSourcesAcrossFiles(t *testing.T) {
	b := NewBundle("tok", "/dir")

	f1 := NewQueueFile("f1", "/dir/f1", 100, "T1")
	f1.AddSource(&Source{CID: adc.CID{1}, Online: true})
	f1.AddSource(&Source{CID: adc.CID{2}, Online: false})
	b.AddFile(f1)

	f2 := NewQueueFile("f2", "/dir/f2", 100, "T2")
	f2.AddSource(&Source{CID: adc.CID{1}, Online: true}) // same source as f1, shouldn't double count
	f2.AddSource(&Source{CID: adc.CID{3}, Online: true})
	b.AddFile(f2)

	assert.Equal(t, 2, b.SourceCount())
}

func TestSourceCountZeroWithNoFiles(t *testing.T) {
	b := NewBundle("tok", "/dir")
	assert.Equal(t, 0, b.SourceCount())
}
