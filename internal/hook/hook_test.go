package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookVetoStopsChain(t *testing.T) {
	h := New[int]()
	var calledSecond bool
	h.Subscribe("first", func(int) error { return errors.New("nope") })
	h.Subscribe("second", func(int) error { calledSecond = true; return nil })

	err := h.Fire(1)
	assert.Error(t, err)
	assert.False(t, calledSecond)
}

func TestHookAllPassThrough(t *testing.T) {
	h := New[string]()
	seen := make([]string, 0, 2)
	h.Subscribe("a", func(s string) error { seen = append(seen, "a:"+s); return nil })
	h.Subscribe("b", func(s string) error { seen = append(seen, "b:"+s); return nil })

	err := h.Fire("x")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a:x", "b:x"}, seen)
}

func TestListenerNeverVetoes(t *testing.T) {
	l := NewListener[int]()
	var errs []string
	l.Subscribe("bad", func(int) error { return errors.New("boom") })
	l.Subscribe("good", func(int) error { return nil })

	l.Notify(1, func(id string, err error) { errs = append(errs, id) })
	assert.Equal(t, []string{"bad"}, errs)
}

func TestUnsubscribeRemoves(t *testing.T) {
	h := New[int]()
	called := false
	h.Subscribe("x", func(int) error { called = true; return nil })
	h.Unsubscribe("x")
	_ = h.Fire(1)
	assert.False(t, called)
}
