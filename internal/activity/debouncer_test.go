package activity

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/merbs-org/clientauth/internal/clocktest"
	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	clock := clocktest.New(time.Unix(1_700_000_000, 0))
	var calls atomic.Int32
	d := NewDebouncer(clock, time.Second, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Touch()
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, int32(0), calls.Load())
	assert.True(t, d.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	clock := clocktest.New(time.Unix(1_700_000_000, 0))
	var calls atomic.Int32
	d := NewDebouncer(clock, time.Second, func() { calls.Add(1) })

	d.Touch()
	clock.Advance(2 * time.Second)
	d.Touch()
	clock.Advance(2 * time.Second)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, clock.Pending())
}

func TestDebouncer_Stop(t *testing.T) {
	clock := clocktest.New(time.Unix(1_700_000_000, 0))
	var calls atomic.Int32
	d := NewDebouncer(clock, time.Second, func() { calls.Add(1) })

	d.Touch()
	d.Stop()
	clock.Advance(5 * time.Second)
	d.Touch()
	clock.Advance(5 * time.Second)

	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_ZeroDelayIsSynchronous(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(clocktest.New(time.Now()), 0, func() { calls.Add(1) })

	d.Touch()
	d.Touch()
	assert.Equal(t, int32(2), calls.Load())
}
