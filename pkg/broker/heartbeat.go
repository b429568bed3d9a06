package broker

import (
	"strconv"
	"strings"
	"time"

	"github.com/chirpnet/chirp/pkg/metrics"
)

// heartbeatLoop drains liveness pings from the PULL socket. Frames are
// plain strings of the form "HEARTBEAT <id>". The receive blocks in its
// own goroutine; the sweep runs independently and is never stalled by
// this loop.
func (b *Broker) heartbeatLoop() {
	defer b.wg.Done()

	for {
		msg, err := b.pull.Recv()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("Failed to receive heartbeat")
			continue
		}

		id, ok := parseHeartbeat(string(msg.Bytes()))
		if !ok {
			b.logger.Warn().Str("frame", string(msg.Bytes())).Msg("Malformed heartbeat")
			continue
		}

		metrics.HeartbeatsTotal.Inc()
		if b.registry.Heartbeat(id, time.Now()) {
			b.logger.Debug().Int("server_id", id).Msg("Heartbeat received")
		} else {
			b.logger.Debug().Int("server_id", id).Msg("Heartbeat from unregistered server ignored")
		}
	}
}

// sweepLoop evicts servers whose heartbeats have gone stale. It runs at
// 1 Hz by default; a server is removed once its last heartbeat is older
// than the configured timeout and its id is never handed out again.
func (b *Broker) sweepLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.SweepInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			evicted := b.registry.Sweep(now, b.cfg.HeartbeatTimeout.Std())
			for _, id := range evicted {
				metrics.ServerEvictionsTotal.Inc()
				b.logger.Warn().Int("server_id", id).Msg("Server offline, removed from registry")
			}
			metrics.ServersRegistered.Set(float64(b.registry.Len()))
		case <-b.ctx.Done():
			return
		}
	}
}

// parseHeartbeat extracts the server id from a "HEARTBEAT <id>" frame.
func parseHeartbeat(frame string) (int, bool) {
	fields := strings.Fields(frame)
	if len(fields) != 2 || fields[0] != "HEARTBEAT" {
		return 0, false
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
