package hub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNmdcModeChar(t *testing.T) {
	assert.Equal(t, "A", nmdcModeChar(412))
	assert.Equal(t, "P", nmdcModeChar(0))
}

func TestNmdcLockToKeyEscapesSpecialBytes(t *testing.T) {
	key := nmdcLockToKey("EXTENDEDPROTOCOLABCABCABCABCABCABC Pk=airdcpp-go")
	assert.NotEmpty(t, key)
	// none of the raw special byte values 0/5/36/96/124/126 should appear
	// unescaped; the cipher either avoids them or always escapes to
	// /%DCNnnn%/.
	for _, bad := range []byte{0, 5, 36, 96, 124, 126} {
		assert.NotContains(t, key, string(rune(bad)))
	}
}

func TestNmdcLockToKeyIsDeterministic(t *testing.T) {
	a := nmdcLockToKey("SOMELOCKVALUE1234567890ABCDEFGHIJ Pk=other")
	b := nmdcLockToKey("SOMELOCKVALUE1234567890ABCDEFGHIJ Pk=other")
	assert.Equal(t, a, b)
}

func TestNmdcLockToKeyIgnoresTrailingPkField(t *testing.T) {
	withPk := nmdcLockToKey("LOCKVALUEHEREXXXXXXXXXXXXXXXXXXXX Pk=foo")
	withoutPk := nmdcLockToKey("LOCKVALUEHEREXXXXXXXXXXXXXXXXXXXX")
	assert.Equal(t, withPk, withoutPk)
}

func TestMyINFOLineFormat(t *testing.T) {
	h := &nmdcHub{opts: Options{Nick: "tester", Description: "desc", Slots: 3, Email: "a@b.c", ShareSize: 12345, TCPPort: 412}}
	line := h.myINFOLine()
	assert.True(t, strings.HasPrefix(line, "$MyINFO $ALL tester desc"))
	assert.Contains(t, line, "S:3")
}
