package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/log"
	"github.com/chirpnet/chirp/pkg/metrics"
	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

// Server exposes a Store on a REP socket. Requests are processed
// strictly serially; no handler suspends.
type Server struct {
	endpoint string
	store    *Store
	logger   zerolog.Logger

	sock   zmq4.Socket
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewServer creates a data store server bound to endpoint once started.
func NewServer(endpoint string, store *Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		endpoint: endpoint,
		store:    store,
		logger:   log.WithComponent("datastore"),
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
}

// Start binds the REP socket and launches the serving loop.
func (s *Server) Start() error {
	sock := zmq4.NewRep(s.ctx)
	if err := sock.Listen(s.endpoint); err != nil {
		return fmt.Errorf("binding data store socket on %s: %w", s.endpoint, err)
	}
	s.sock = sock

	s.logger.Info().Str("endpoint", s.endpoint).Msg("Data store listening")
	go s.run()
	return nil
}

// Stop terminates the serving loop and closes the socket.
func (s *Server) Stop() {
	s.cancel()
	if s.sock != nil {
		_ = s.sock.Close()
	}
	<-s.doneCh
}

func (s *Server) run() {
	defer close(s.doneCh)

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				s.logger.Info().Msg("Data store stopped")
				return
			}
			s.logger.Error().Err(err).Msg("Failed to receive request")
			continue
		}

		reply := s.dispatch(msg.Bytes())
		if err := s.sock.Send(zmq4.NewMsg(reply)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send reply")
		}
	}
}

// dispatch decodes one frame, applies it to the store and returns the
// encoded reply. It always produces a reply; the REP socket requires one
// send per receive.
func (s *Server) dispatch(frame []byte) []byte {
	req, err := protocol.ParseRequest(frame)
	if err != nil {
		var unknown *protocol.UnknownActionError
		if errors.As(err, &unknown) {
			s.logger.Warn().Str("action", unknown.ActionName).Msg("Unknown action")
		} else {
			s.logger.Error().Err(err).Msg("Malformed request")
		}
		return mustEncode(protocol.RetMsg{Ret: types.ErrUnknownAction, Msg: "Ação não reconhecida"})
	}

	metrics.StoreRequestsTotal.WithLabelValues(req.Action()).Inc()
	s.logger.Debug().Str("action", req.Action()).Msg("Processing request")

	switch r := req.(type) {
	case *protocol.AddUser:
		id, topic, err := s.store.AddUser(r.Username)
		if err != nil {
			s.logger.Warn().Str("username", r.Username).Msg("Username already taken")
			return mustEncode(protocol.Ret{Ret: codeFor(err)})
		}
		s.logger.Info().Str("username", r.Username).Int("id", id).Str("topic", topic).Msg("User registered")
		return mustEncode(protocol.AddUserReply{Ret: types.Success, ID: id, Topic: topic})

	case *protocol.GetUserID:
		return mustEncode(protocol.UserIDReply{ID: s.store.UserID(r.Username)})

	case *protocol.AddPost:
		s.store.AddPost(r.Post)
		return mustEncode(protocol.Ret{Ret: types.Success})

	case *protocol.GetPosts:
		return mustEncode(protocol.PostsReply{Posts: s.store.Posts()})

	case *protocol.GetUserTopic:
		return mustEncode(protocol.TopicReply{Topic: s.store.UserTopic(r.ID)})

	case *protocol.AddFollower:
		if err := s.store.AddFollower(r.ID, r.ToFollow); err != nil {
			s.logger.Warn().Int("id", r.ID).Str("to_follow", r.ToFollow).Err(err).Msg("Follow rejected")
			return mustEncode(protocol.Ret{Ret: codeFor(err)})
		}
		return mustEncode(protocol.Ret{Ret: types.Success})

	case *protocol.GetFollowers:
		return mustEncode(protocol.FollowersReply{Followers: s.store.Followers(r.ID)})

	case *protocol.AddPrivateMessage:
		ts, err := strconv.ParseInt(r.Timestamp, 10, 64)
		if err != nil {
			s.logger.Warn().Str("timestamp", r.Timestamp).Msg("Bad private message timestamp")
			return mustEncode(protocol.Ret{Ret: types.ErrInvalidParameter})
		}
		if err := s.store.AddPrivateMessage(r.Remetente, r.Destinatario, r.Mensagem, ts); err != nil {
			s.logger.Warn().Str("remetente", r.Remetente).Str("destinatario", r.Destinatario).Err(err).Msg("Private message rejected")
			return mustEncode(protocol.Ret{Ret: codeFor(err)})
		}
		return mustEncode(protocol.Ret{Ret: types.Success})

	case *protocol.GetPrivateMessages:
		msgs := s.store.PrivateMessages(r.Remetente, r.Destinatario)
		return mustEncode(protocol.PrivateMessagesReply{Ret: types.Success, Mensagens: msgs})

	default:
		// Frontend-only actions (post_text, get_timeline) never reach the
		// data store; app servers translate them first.
		s.logger.Warn().Str("action", req.Action()).Msg("Action not served by data store")
		return mustEncode(protocol.RetMsg{Ret: types.ErrUnknownAction, Msg: "Ação não reconhecida"})
	}
}

// codeFor maps store validation errors to wire return codes.
func codeFor(err error) types.ReturnCode {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return types.ErrUsernameTaken
	case errors.Is(err, ErrUserNotFound):
		return types.ErrUserNotFound
	case errors.Is(err, ErrInvalidParameter):
		return types.ErrInvalidParameter
	default:
		return types.ErrRuntime
	}
}

func mustEncode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Reply types are plain structs; marshalling cannot fail at runtime.
		panic(err)
	}
	return data
}
