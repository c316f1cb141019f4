package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/hook"
	"github.com/airdcpp-go/client/internal/identity"
	"github.com/airdcpp-go/client/internal/logging"
)

func newTestSession() *Session {
	return &Session{
		url:      "adc://test",
		registry: identity.NewRegistry(),
		users:    make(map[adc.CID]*identity.OnlineUser),
		log:      logging.New("hub.test"),
		cmdC:     make(chan func(), 64),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),

		OutgoingPrivateMessageHook: hook.New[ChatMessage](),
		IncomingChatMessageHook:    hook.New[ChatMessage](),
	}
}

func TestDeliverMSGResolvesSIDToCIDAndMarksPrivate(t *testing.T) {
	s := newTestSession()
	cid := adc.CID{1, 2, 3}
	sid := adc.SID{9, 9, 9, 9}
	s.upsertUser(cid, func(u *identity.User) *identity.Identity {
		return identity.NewIdentity(u, sid)
	})

	h := &adcHub{log: s.log}

	var got ChatMessage
	s.IncomingChatMessageHook.Subscribe("capture", func(msg ChatMessage) error {
		got = msg
		return nil
	})

	c := &adc.Command{Type: adc.Direct, Name: "MSG", From: sid, Params: []string{"hello there"}}
	h.deliverMSG(s, c)

	assert.Equal(t, cid, got.From)
	assert.Equal(t, "hello there", got.Text)
	assert.True(t, got.Private)
}

func TestDeliverMSGIgnoresUnknownSID(t *testing.T) {
	s := newTestSession()
	h := &adcHub{log: s.log}

	fired := false
	s.IncomingChatMessageHook.Subscribe("capture", func(msg ChatMessage) error {
		fired = true
		return nil
	})

	c := &adc.Command{Type: adc.Broadcast, Name: "MSG", From: adc.SID{1, 1, 1, 1}, Params: []string{"x"}}
	h.deliverMSG(s, c)

	assert.False(t, fired)
}

func TestIncomingChatMessageHookVetoIsLoggedNotAborted(t *testing.T) {
	s := newTestSession()
	calls := 0
	s.IncomingChatMessageHook.Subscribe("reject", func(msg ChatMessage) error {
		calls++
		return assert.AnError
	})
	// deliverChatMessage must not panic or block on a vetoing subscriber.
	require.NotPanics(t, func() {
		s.deliverChatMessage(ChatMessage{Text: "spam"})
	})
	assert.Equal(t, 1, calls)
}

func TestNmdcDeliverPrivateMessageParsesToAndFrom(t *testing.T) {
	s := newTestSession()
	h := &nmdcHub{opts: Options{Nick: "me"}, log: s.log, nickToCID: map[string]adc.CID{"bob": {4, 5, 6}}}

	var got ChatMessage
	s.IncomingChatMessageHook.Subscribe("capture", func(msg ChatMessage) error {
		got = msg
		return nil
	})

	h.deliverPrivateMessage(s, "$To: me From: bob $<bob> hi there")

	assert.Equal(t, adc.CID{4, 5, 6}, got.From)
	assert.Equal(t, "hi there", got.Text)
	assert.True(t, got.Private)
}

func TestNmdcDeliverMainChatMessageParsesNickAndText(t *testing.T) {
	s := newTestSession()
	h := &nmdcHub{opts: Options{Nick: "me"}, log: s.log, nickToCID: map[string]adc.CID{"alice": {7, 8, 9}}}

	var got ChatMessage
	s.IncomingChatMessageHook.Subscribe("capture", func(msg ChatMessage) error {
		got = msg
		return nil
	})

	h.deliverMainChatMessage(s, "<alice> hello room")

	assert.Equal(t, adc.CID{7, 8, 9}, got.From)
	assert.Equal(t, "hello room", got.Text)
	assert.False(t, got.Private)
}

func TestNmdcDeliverPrivateMessageIgnoresUnknownNick(t *testing.T) {
	s := newTestSession()
	h := &nmdcHub{opts: Options{Nick: "me"}, log: s.log, nickToCID: map[string]adc.CID{}}

	fired := false
	s.IncomingChatMessageHook.Subscribe("capture", func(msg ChatMessage) error {
		fired = true
		return nil
	})

	h.deliverPrivateMessage(s, "$To: me From: ghost $<ghost> boo")
	assert.False(t, fired)
}
