package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := New(start)

	var order []string
	var firedAt []time.Time
	c.AfterFunc(2*time.Minute, func() { order = append(order, "b"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(time.Minute, func() { order = append(order, "a"); firedAt = append(firedAt, c.Now()) })
	c.AfterFunc(10*time.Minute, func() { order = append(order, "late") })

	c.Advance(5 * time.Minute)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []time.Time{start.Add(time.Minute), start.Add(2 * time.Minute)}, firedAt)
	assert.Equal(t, start.Add(5*time.Minute), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestStopPreventsFiring(t *testing.T) {
	c := New(time.Unix(0, 0))
	fired := false
	stop := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, stop())
	assert.False(t, stop())
	c.Advance(time.Hour)
	assert.False(t, fired)
	assert.Zero(t, c.Pending())
}

func TestCallbackCanScheduleWithinSameAdvance(t *testing.T) {
	c := New(time.Unix(0, 0))
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(3 * time.Second)
	assert.Equal(t, 2, count)
}
