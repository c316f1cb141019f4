package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestBuildOwnINFRoundTripsThroughWireFormat(t *testing.T) {
	h := &adcHub{opts: Options{
		Nick:        "tester",
		PID:         adc.PID{7, 7, 7},
		Description: "a desc",
		Email:       "a@b.c",
		ShareSize:   500,
		Slots:       4,
		TCPPort:     412,
	}, mySID: adc.SID{1, 2, 3, 4}}

	cmd := h.buildOwnINF()
	line := cmd.ToString(h.mySID)

	parsed, err := adc.Parse(line, false)
	require.NoError(t, err)

	nick, ok := parsed.GetParam("NI", 0)
	require.True(t, ok)
	assert.Equal(t, "tester", nick)

	id, ok := parsed.GetParam("ID", 0)
	require.True(t, ok)
	assert.Equal(t, adc.CIDFromPID(h.opts.PID).String(), id)
}

func TestBuildOwnINFEscapesSpacesInDescription(t *testing.T) {
	h := &adcHub{opts: Options{Nick: "n", Description: "has a space", PID: adc.PID{1}}, mySID: adc.SID{1}}
	cmd := h.buildOwnINF()
	line := cmd.ToString(h.mySID)

	parsed, err := adc.Parse(line, false)
	require.NoError(t, err)

	de, ok := parsed.GetParam("DE", 0)
	require.True(t, ok)
	assert.Equal(t, "has a space", de)
}
