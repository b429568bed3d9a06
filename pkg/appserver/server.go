package appserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/log"
	"github.com/chirpnet/chirp/pkg/metrics"
	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

// Server is one stateless app server: it pulls client requests from the
// broker backend, consults the data store, and participates in the
// cluster control plane (heartbeats, membership, election, clock sync).
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	id      int
	clock   *Clock
	store   DataStore
	control ControlPlane

	worker zmq4.Socket // REP, dialed into the broker backend
	sub    zmq4.Socket // SUB, clock_sync topic
	push   zmq4.Socket // PUSH, heartbeats

	// Cached membership snapshot; diagnostics only, races tolerated.
	serversMu     sync.Mutex
	activeServers []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an app server. The store and control collaborators are
// injected so tests can run handlers against stubs.
func New(cfg *config.Config, store DataStore, control ControlPlane) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		logger:  log.WithComponent("appserver"),
		clock:   NewClock(wallSeconds()),
		store:   store,
		control: control,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the broker-assigned server id; 0 before Start.
func (s *Server) ID() int {
	return s.id
}

// Clock returns the server's logical clock.
func (s *Server) Clock() *Clock {
	return s.clock
}

// Start registers with the broker, connects the worker sockets and
// launches the request loop plus the six background loops (heartbeat,
// membership, election, clock-sync subscriber, drift, clock report).
func (s *Server) Start() error {
	id, err := s.control.RegisterServer()
	if err != nil {
		return fmt.Errorf("registering with broker: %w", err)
	}
	s.id = id
	s.logger = log.WithServerID(id)

	eps := s.cfg.Endpoints

	s.worker = zmq4.NewRep(s.ctx, zmq4.WithAutomaticReconnect(true))
	if err := s.worker.Dial(eps.Backend); err != nil {
		return fmt.Errorf("dialing broker backend %s: %w", eps.Backend, err)
	}

	s.sub = zmq4.NewSub(s.ctx, zmq4.WithAutomaticReconnect(true))
	if err := s.sub.Dial(eps.Notify); err != nil {
		return fmt.Errorf("dialing notification bus %s: %w", eps.Notify, err)
	}
	if err := s.sub.SetOption(zmq4.OptionSubscribe, types.ClockSyncTopic); err != nil {
		return fmt.Errorf("subscribing to clock sync: %w", err)
	}

	s.push = zmq4.NewPush(s.ctx, zmq4.WithAutomaticReconnect(true))
	if err := s.push.Dial(eps.Heartbeat); err != nil {
		return fmt.Errorf("dialing heartbeat ingress %s: %w", eps.Heartbeat, err)
	}

	s.wg.Add(7)
	go s.requestLoop()
	go s.heartbeatLoop()
	go s.membershipLoop()
	go s.electionLoop()
	go s.clockSyncLoop()
	go s.driftLoop()
	go s.clockReportLoop()

	s.logger.Info().Msg("App server started")
	return nil
}

// Stop terminates all loops and closes the sockets.
func (s *Server) Stop() {
	s.cancel()
	for _, sock := range []zmq4.Socket{s.worker, s.sub, s.push} {
		if sock != nil {
			_ = sock.Close()
		}
	}
	s.wg.Wait()
	s.logger.Info().Msg("App server stopped")
}

// requestLoop receives one request at a time from the broker backend,
// dispatches it and sends the reply. A failed request is answered and
// logged; the loop never terminates on one.
func (s *Server) requestLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.worker.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("Failed to receive request")
			continue
		}

		reply := s.dispatch(msg.Bytes())
		if err := s.worker.Send(zmq4.NewMsg(reply)); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("Failed to send reply")
		}
	}
}

// dispatch parses one frame and routes it to its handler.
func (s *Server) dispatch(frame []byte) []byte {
	logger := s.logger.With().Str("req_id", uuid.NewString()[:8]).Logger()

	req, err := protocol.ParseRequest(frame)
	if err != nil {
		var unknown *protocol.UnknownActionError
		if errors.As(err, &unknown) {
			logger.Warn().Str("action", unknown.ActionName).Msg("Unknown action")
			metrics.RequestsTotal.WithLabelValues(unknown.ActionName, "unknown").Inc()
			return mustEncode(protocol.RetMsg{Ret: types.ErrUnknownAction, Msg: "Ação desconhecida"})
		}
		logger.Error().Err(err).Msg("Malformed request frame")
		return mustEncode(protocol.RetMsg{Ret: types.ErrRuntime, Msg: "Erro: " + err.Error()})
	}

	action := req.Action()
	logger.Debug().Str("action", action).Msg("Request received")
	timer := metrics.NewTimer()

	var reply []byte
	switch r := req.(type) {
	case *protocol.AddUser:
		reply = s.handleAddUser(logger, r)
	case *protocol.AddFollower:
		reply = s.handleFollow(logger, r)
	case *protocol.PostText:
		reply = s.handlePostText(logger, r)
	case *protocol.GetTimeline:
		reply = s.handleGetTimeline(logger)
	case *protocol.AddPrivateMessage:
		reply = s.handlePrivateMessage(logger, r)
	case *protocol.GetPrivateMessages:
		reply = s.handleGetPrivateMessages(logger, r)
	default:
		// Data-store internal actions are not served on this channel.
		logger.Warn().Str("action", action).Msg("Action not served by app server")
		metrics.RequestsTotal.WithLabelValues(action, "unknown").Inc()
		return mustEncode(protocol.RetMsg{Ret: types.ErrUnknownAction, Msg: "Ação desconhecida"})
	}

	timer.ObserveDurationVec(metrics.RequestDuration, action)
	metrics.RequestsTotal.WithLabelValues(action, "handled").Inc()
	return reply
}

// ActiveServers returns the last membership snapshot.
func (s *Server) ActiveServers() []string {
	s.serversMu.Lock()
	defer s.serversMu.Unlock()
	out := make([]string, len(s.activeServers))
	copy(out, s.activeServers)
	return out
}

func (s *Server) setActiveServers(servers []string) {
	s.serversMu.Lock()
	s.activeServers = servers
	s.serversMu.Unlock()
}

// wallSeconds is the wall clock as float seconds since the epoch.
func wallSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
