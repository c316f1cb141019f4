package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloodCounterEscalates(t *testing.T) {
	fc := NewFloodCounter(time.Minute, 3, 5)
	now := time.Now()

	assert.Equal(t, FloodOK, fc.AddOne("1.2.3.4", now))
	assert.Equal(t, FloodOK, fc.AddOne("1.2.3.4", now))
	assert.Equal(t, FloodMinor, fc.AddOne("1.2.3.4", now))
	assert.Equal(t, FloodMinor, fc.AddOne("1.2.3.4", now))
	assert.Equal(t, FloodSevere, fc.AddOne("1.2.3.4", now))
}

func TestFloodCounterWindowExpires(t *testing.T) {
	fc := NewFloodCounter(time.Second, 2, 3)
	now := time.Now()
	fc.AddOne("a", now)
	fc.AddOne("a", now)
	later := now.Add(2 * time.Second)
	assert.Equal(t, FloodOK, fc.AddOne("a", later))
}

func TestFloodCounterRemove(t *testing.T) {
	fc := NewFloodCounter(time.Minute, 1, 2)
	now := time.Now()
	fc.AddOne("a", now)
	fc.Remove("a")
	assert.Equal(t, FloodMinor, fc.AddOne("a", now))
}
