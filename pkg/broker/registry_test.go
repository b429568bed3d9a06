package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsStrictlyIncreasingIDs(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	first := r.Register(now)
	second := r.Register(now)
	third := r.Register(now)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 3, third)
}

func TestIDsNeverReusedAfterEviction(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	id := r.Register(now)
	evicted := r.Sweep(now.Add(10*time.Second), 4*time.Second)
	require.Equal(t, []int{id}, evicted)

	// A fresh registration continues the sequence.
	next := r.Register(now)
	assert.Greater(t, next, id)
}

func TestLeaderIsHighestLiveID(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	_, ok := r.Leader()
	assert.False(t, ok, "empty registry has no leader")

	s1 := r.Register(now)
	leader, ok := r.Leader()
	require.True(t, ok)
	assert.Equal(t, s1, leader)

	s2 := r.Register(now)
	s3 := r.Register(now)
	leader, _ = r.Leader()
	assert.Equal(t, s3, leader)

	// Evict the highest id; leadership falls back to the next one.
	r.Heartbeat(s1, now.Add(6*time.Second))
	r.Heartbeat(s2, now.Add(6*time.Second))
	evicted := r.Sweep(now.Add(6*time.Second), 4*time.Second)
	require.Equal(t, []int{s3}, evicted)

	leader, ok = r.Leader()
	require.True(t, ok)
	assert.Equal(t, s2, leader)
}

func TestSweepEvictsStaleServers(t *testing.T) {
	r := NewRegistry()
	start := time.Now()

	fresh := r.Register(start)
	stale := r.Register(start)

	// Only one server keeps heartbeating.
	r.Heartbeat(fresh, start.Add(4*time.Second))

	evicted := r.Sweep(start.Add(5*time.Second), 4*time.Second)
	assert.Equal(t, []int{stale}, evicted)
	assert.Equal(t, []int{fresh}, r.Servers())
}

func TestHeartbeatFromEvictedServerIgnored(t *testing.T) {
	r := NewRegistry()
	start := time.Now()

	id := r.Register(start)
	r.Sweep(start.Add(10*time.Second), 4*time.Second)

	assert.False(t, r.Heartbeat(id, start.Add(11*time.Second)))
	assert.Empty(t, r.Servers())
}

func TestRegisteredSilentServerIsEvicted(t *testing.T) {
	r := NewRegistry()
	start := time.Now()

	// Registration counts as the first heartbeat; a server that never
	// pings afterwards still ages out.
	id := r.Register(start)
	assert.Empty(t, r.Sweep(start.Add(3*time.Second), 4*time.Second))
	assert.Equal(t, []int{id}, r.Sweep(start.Add(5*time.Second), 4*time.Second))
}

func TestServersSnapshotSorted(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	for i := 0; i < 5; i++ {
		r.Register(now)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, r.Servers())
	assert.Equal(t, 5, r.Len())
}

func TestParseHeartbeat(t *testing.T) {
	id, ok := parseHeartbeat("HEARTBEAT 7")
	require.True(t, ok)
	assert.Equal(t, 7, id)

	_, ok = parseHeartbeat("HEARTBEAT")
	assert.False(t, ok)
	_, ok = parseHeartbeat("HEARTBEAT seven")
	assert.False(t, ok)
	_, ok = parseHeartbeat("PING 7")
	assert.False(t, ok)
}
