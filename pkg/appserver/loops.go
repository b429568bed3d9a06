package appserver

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/chirpnet/chirp/pkg/metrics"
	"github.com/chirpnet/chirp/pkg/types"
)

// heartbeatLoop pushes a liveness ping to the broker every interval.
func (s *Server) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			frame := fmt.Sprintf("HEARTBEAT %d", s.id)
			if err := s.push.Send(zmq4.NewMsgString(frame)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send heartbeat")
				continue
			}
			s.logger.Debug().Msg("Heartbeat sent")
		case <-s.ctx.Done():
			return
		}
	}
}

// membershipLoop refreshes the cached list of active servers.
func (s *Server) membershipLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.MembershipRefresh.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			servers, err := s.control.ListServers()
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to refresh server list")
				continue
			}
			s.setActiveServers(servers)
			s.logger.Info().Strs("servers", servers).Msg("Active servers refreshed")
		case <-s.ctx.Done():
			return
		}
	}
}

// electionLoop asks who leads; when this server is the leader it
// broadcasts its wall time for the others to adopt. Two servers may
// briefly both believe themselves leader across a membership change;
// duplicate broadcasts are idempotent, so the race is tolerated.
func (s *Server) electionLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ElectionInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			leader, err := s.control.Leader()
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to query leader")
				continue
			}
			if leader == nil {
				s.logger.Warn().Msg("No leader, registry is empty")
				continue
			}
			s.logger.Info().Int("leader_id", *leader).Msg("Leader checked")

			if *leader != s.id {
				continue
			}
			now := wallSeconds()
			if err := s.control.SyncClock(now); err != nil {
				s.logger.Error().Err(err).Msg("Failed to broadcast clock sync")
				continue
			}
			s.logger.Info().Float64("timestamp", now).Msg("Leading, clock sync broadcast")
		case <-s.ctx.Done():
			return
		}
	}
}

// clockSyncLoop adopts clock values broadcast on the clock_sync topic.
func (s *Server) clockSyncLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.sub.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("Failed to receive clock sync")
			continue
		}

		ts, ok := parseClockSync(string(msg.Bytes()))
		if !ok {
			s.logger.Warn().Str("frame", string(msg.Bytes())).Msg("Malformed clock sync")
			continue
		}

		old := s.clock.Now()
		s.clock.Set(ts)
		metrics.LocalClockSeconds.Set(ts)
		s.logger.Info().Float64("from", old).Float64("to", ts).Msg("Local clock synchronized")
	}
}

// driftLoop perturbs the local clock by a uniform value in [-1, +1]
// seconds each interval, simulating hardware skew.
func (s *Server) driftLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DriftInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			drift := rand.Float64()*2 - 1
			now := s.clock.Add(drift)
			metrics.LocalClockSeconds.Set(now)
			s.logger.Debug().Float64("drift", drift).Float64("clock", now).Msg("Drift applied")
		case <-s.ctx.Done():
			return
		}
	}
}

// clockReportLoop logs the local clock value for observing how far the
// cluster has converged.
func (s *Server) clockReportLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info().Float64("clock", s.clock.Now()).Msg("Local clock")
		case <-s.ctx.Done():
			return
		}
	}
}

// parseClockSync extracts the timestamp from a "clock_sync <ts>" frame.
func parseClockSync(frame string) (float64, bool) {
	fields := strings.Fields(frame)
	if len(fields) != 2 || fields[0] != types.ClockSyncTopic {
		return 0, false
	}
	ts, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
