package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestNextSegmentPicksFirstGap(t *testing.T) {
	seg, ok := NextSegment(1000, nil, nil, nil, 400, false)
	require.True(t, ok)
	assert.Equal(t, Segment{Start: 0, Size: 400}, seg)
}

func TestNextSegmentSkipsDoneAndAssigned(t *testing.T) {
	done := []Segment{{Start: 0, Size: 400}}
	assigned := []Segment{{Start: 400, Size: 300}}
	seg, ok := NextSegment(1000, done, assigned, nil, 400, false)
	require.True(t, ok)
	assert.Equal(t, int64(700), seg.Start)
	assert.Equal(t, int64(300), seg.Size)
}

func TestNextSegmentRespectsSourceCoverage(t *testing.T) {
	src := &Source{PartialInfo: []Segment{{Start: 500, Size: 500}}}
	seg, ok := NextSegment(1000, nil, nil, src, 1000, false)
	require.True(t, ok)
	assert.Equal(t, int64(500), seg.Start)
}

func TestNextSegmentNoGapNoOverlap(t *testing.T) {
	assigned := []Segment{{Start: 0, Size: 1000}}
	_, ok := NextSegment(1000, nil, assigned, nil, 400, false)
	assert.False(t, ok)
}

func TestNextSegmentOverlapsWhenAllowed(t *testing.T) {
	assigned := []Segment{{Start: 0, Size: 1000}}
	seg, ok := NextSegment(1000, nil, assigned, nil, 1000, true)
	require.True(t, ok)
	assert.True(t, seg.Overlapped)
}

func TestMergeCoalescesAdjacent(t *testing.T) {
	merged := merge([]Segment{{Start: 0, Size: 100}, {Start: 100, Size: 50}, {Start: 300, Size: 10}})
	require.Len(t, merged, 2)
	assert.Equal(t, Segment{Start: 0, Size: 150}, merged[0])
}

func TestFinishSegmentMarksDoneAndCompletesFile(t *testing.T) {
	f := NewQueueFile("tok", "/tmp/x", 100, "TTH")
	src := &Source{CID: adc.CID{1}}
	f.AddSource(src)
	m := NewManager("/tmp")
	m.AssignSegment(src, Segment{Start: 0, Size: 100})
	m.FinishSegment(f, src, Segment{Start: 0, Size: 100})
	assert.True(t, f.IsComplete())
	assert.Empty(t, src.AssignedSegments())
}
