package connmgr

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
)

func TestHandshakeInboundDetectsADC(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	myCID := adc.CID{1, 2, 3}
	peerCID := adc.CID{9, 9, 9}

	go func() {
		w := bufio.NewWriter(client)
		w.WriteString("CSUP ADBASE\n")
		w.Flush()

		r := bufio.NewReader(client)
		r.ReadString('\n') // our SUP reply

		inf := &adc.Command{Type: adc.ClientToClient, Name: "INF"}
		inf.AddParam("ID", peerCID.String())
		inf.AddParam("TO", "tok123")
		w.WriteString(inf.String() + "\n")
		w.Flush()

		r.ReadString('\n') // our INF reply
	}()

	pc, err := HandshakeInbound(server, myCID, time.Second)
	require.NoError(t, err)
	assert.True(t, pc.IsADC)
	assert.Equal(t, peerCID, pc.PeerCID)
	assert.Equal(t, "tok123", pc.Token)
	assert.Equal(t, CCStateIdle, pc.State)
}

func TestHandshakeInboundDetectsNMDC(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		w := bufio.NewWriter(client)
		w.WriteString("$MyNick someuser|")
		w.Flush()

		r := bufio.NewReader(client)
		r.ReadString('|') // our $Lock

		w.WriteString("$Key somekey|")
		w.Flush()
	}()

	pc, err := HandshakeInbound(server, adc.CID{1}, time.Second)
	require.NoError(t, err)
	assert.False(t, pc.IsADC)
	assert.Equal(t, "someuser", pc.Token)
}

func TestHandshakeInboundRejectsGarbage(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte("GARBAGE\n"))
	}()

	_, err := HandshakeInbound(server, adc.CID{1}, time.Second)
	assert.Error(t, err)
}
