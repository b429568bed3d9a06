package appserver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockSetAndNow(t *testing.T) {
	c := NewClock(100.5)
	assert.Equal(t, 100.5, c.Now())

	c.Set(200.25)
	assert.Equal(t, 200.25, c.Now())
}

func TestClockAdd(t *testing.T) {
	c := NewClock(10)
	assert.Equal(t, 10.5, c.Add(0.5))
	assert.Equal(t, 9.5, c.Add(-1))
	assert.Equal(t, 9.5, c.Now())
}

func TestClockConcurrentDrift(t *testing.T) {
	c := NewClock(0)

	// Concurrent drifts must not lose updates; the CAS loop makes the
	// sum exact.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000.0, c.Now())
}

func TestParseClockSync(t *testing.T) {
	ts, ok := parseClockSync("clock_sync 1234.5")
	assert.True(t, ok)
	assert.Equal(t, 1234.5, ts)

	_, ok = parseClockSync("clock_sync")
	assert.False(t, ok)
	_, ok = parseClockSync("other_topic 12")
	assert.False(t, ok)
	_, ok = parseClockSync("clock_sync noon")
	assert.False(t, ok)
}
