package appserver

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

// handleAddUser forwards a signup to the data store. Success carries the
// assigned id and topic; failures carry the bare return code.
func (s *Server) handleAddUser(logger zerolog.Logger, req *protocol.AddUser) []byte {
	reply, err := s.store.AddUser(req.Username)
	if err != nil {
		return s.errorReply(logger, err)
	}
	if reply.Ret != types.Success {
		logger.Warn().Str("username", req.Username).Msg("Signup rejected, username taken")
		return mustEncode(protocol.Ret{Ret: reply.Ret})
	}
	logger.Info().Str("username", req.Username).Int("id", reply.ID).Str("topic", reply.Topic).Msg("User signed up")
	return mustEncode(reply)
}

// handleFollow forwards a follow request to the data store.
func (s *Server) handleFollow(logger zerolog.Logger, req *protocol.AddFollower) []byte {
	ret, err := s.store.AddFollower(req.ID, req.ToFollow)
	if err != nil {
		return s.errorReply(logger, err)
	}
	switch ret {
	case types.Success:
		logger.Info().Int("id", req.ID).Str("to_follow", req.ToFollow).Msg("Follow recorded")
	case types.ErrInvalidParameter:
		logger.Warn().Int("id", req.ID).Msg("User cannot follow themselves")
	default:
		logger.Warn().Str("to_follow", req.ToFollow).Msg("User to follow not found")
	}
	return mustEncode(protocol.Ret{Ret: ret})
}

// handlePostText stores the post and then, before replying, fans the
// notification out through the broker. The client sees the post
// acknowledged only after every then-current follower has at least been
// offered the notification.
func (s *Server) handlePostText(logger zerolog.Logger, req *protocol.PostText) []byte {
	post := types.Post{
		Username:           req.Username,
		UserID:             req.ID,
		Texto:              req.Texto,
		TempoEnvioMensagem: req.TempoEnvioMensagem,
	}
	if err := s.store.AddPost(post); err != nil {
		return s.errorReply(logger, err)
	}

	if err := s.notifyFollowers(logger, req.ID, req.Username); err != nil {
		return s.errorReply(logger, err)
	}

	logger.Info().Str("username", req.Username).Int("id", req.ID).Msg("Post stored and followers notified")
	return mustEncode(protocol.RetMsg{Ret: types.Success, Msg: "Postagem recebida!"})
}

// notifyFollowers resolves each follower's topic and asks the broker to
// publish, awaiting its acknowledgment.
func (s *Server) notifyFollowers(logger zerolog.Logger, userID int, username string) error {
	followers, err := s.store.Followers(userID)
	if err != nil {
		return err
	}

	usersToNotify := make(map[int]string, len(followers))
	for _, followerID := range followers {
		topic, err := s.store.UserTopic(followerID)
		if err != nil {
			return err
		}
		usersToNotify[followerID] = topic
	}

	msg := fmt.Sprintf("Novo post do %s disponível!", username)
	notified, err := s.control.NotifyUsers(username, usersToNotify, msg)
	if err != nil {
		return err
	}
	logger.Debug().Ints("notified", notified).Str("post_owner", username).Msg("Fan-out acknowledged")
	return nil
}

// handleGetTimeline answers with the raw post array, unwrapped.
func (s *Server) handleGetTimeline(logger zerolog.Logger) []byte {
	posts, err := s.store.Posts()
	if err != nil {
		return s.errorReply(logger, err)
	}
	if posts == nil {
		posts = []types.Post{}
	}
	logger.Debug().Int("posts", len(posts)).Msg("Timeline served")
	return mustEncode(posts)
}

// handlePrivateMessage forwards a direct message verbatim.
func (s *Server) handlePrivateMessage(logger zerolog.Logger, req *protocol.AddPrivateMessage) []byte {
	ret, err := s.store.AddPrivateMessage(req)
	if err != nil {
		return s.errorReply(logger, err)
	}
	if ret == types.Success {
		logger.Info().Str("remetente", req.Remetente).Str("destinatario", req.Destinatario).Msg("Private message stored")
	} else {
		logger.Warn().Str("remetente", req.Remetente).Str("destinatario", req.Destinatario).Msg("Private message rejected")
	}
	return mustEncode(protocol.Ret{Ret: ret})
}

// handleGetPrivateMessages forwards a conversation query and returns the
// full result.
func (s *Server) handleGetPrivateMessages(logger zerolog.Logger, req *protocol.GetPrivateMessages) []byte {
	reply, err := s.store.PrivateMessages(req.Remetente, req.Destinatario)
	if err != nil {
		return s.errorReply(logger, err)
	}
	if reply.Mensagens == nil {
		reply.Mensagens = []types.PrivateMessage{}
	}
	return mustEncode(reply)
}

// errorReply logs a failed external call and surfaces it as ret -1. No
// request error terminates the loop.
func (s *Server) errorReply(logger zerolog.Logger, err error) []byte {
	logger.Error().Err(err).Msg("Request failed")
	return mustEncode(protocol.RetMsg{Ret: types.ErrRuntime, Msg: "Erro: " + err.Error()})
}

func mustEncode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
