package adc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBroadcastINF(t *testing.T) {
	line := "BINF AAAA NIfoo SS1234"
	c, err := Parse(line, false)
	require.NoError(t, err)
	assert.Equal(t, Broadcast, c.Type)
	assert.Equal(t, "INF", c.Name)
	nick, ok := c.GetParam("NI", 0)
	assert.True(t, ok)
	assert.Equal(t, "foo", nick)
}

func TestParseDirectRequiresToSID(t *testing.T) {
	_, err := Parse("DCTM AAAA", false)
	assert.Error(t, err)
}

func TestRoundTripEscaping(t *testing.T) {
	c := &Command{Type: Broadcast, Name: "MSG", From: SIDFromUint32(42)}
	c.AddPositional("hello world\nwith\\backslash")

	out := c.String()
	reparsed, err := Parse(out, false)
	require.NoError(t, err)
	require.Len(t, reparsed.Params, 1)
	assert.Equal(t, "hello world\nwith\\backslash", reparsed.Params[0])
}

func TestFeatureBroadcastSelectors(t *testing.T) {
	c, err := Parse("FSCH AAAA +SEGA -NAT0 ANfile", false)
	require.NoError(t, err)
	require.Len(t, c.Features, 2)
	assert.Equal(t, "SEGA", c.Features[0].Feature)
	assert.True(t, c.Features[0].Required)
	assert.Equal(t, "NAT0", c.Features[1].Feature)
	assert.False(t, c.Features[1].Required)
	pattern, ok := c.GetParam("AN", 0)
	assert.True(t, ok)
	assert.Equal(t, "file", pattern)
}

func TestStatusRoundTrip(t *testing.T) {
	c := NewStatus(FromHub, "STA", SeverityFatal, ErrNickTaken, "nick in use")
	st, err := ParseStatus(c)
	require.NoError(t, err)
	assert.Equal(t, SeverityFatal, st.Severity)
	assert.Equal(t, ErrNickTaken, st.Code)
	assert.Equal(t, "nick in use", st.Message)
}

func TestUnknownAddressType(t *testing.T) {
	_, err := Parse("ZINF AAAA", false)
	assert.Error(t, err)
}
