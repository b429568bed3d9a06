package datastore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

func newTestServer() *Server {
	return NewServer("tcp://127.0.0.1:0", NewStore())
}

func TestDispatchSignupCollision(t *testing.T) {
	s := newTestServer()

	reply := s.dispatch([]byte(`{"action":"add_user","username":"alice"}`))
	assert.JSONEq(t, `{"ret":0,"id":1,"topic":"notificacao_user_1"}`, string(reply))

	// Same username again: taken, and no id leaks into the reply.
	reply = s.dispatch([]byte(`{"action":"add_user","username":"alice"}`))
	var ret protocol.Ret
	require.NoError(t, json.Unmarshal(reply, &ret))
	assert.Equal(t, types.ErrUsernameTaken, ret.Ret)

	reply = s.dispatch([]byte(`{"action":"add_user","username":"bob"}`))
	assert.JSONEq(t, `{"ret":0,"id":2,"topic":"notificacao_user_2"}`, string(reply))
}

func TestDispatchSelfFollowRejected(t *testing.T) {
	s := newTestServer()
	s.dispatch([]byte(`{"action":"add_user","username":"alice"}`))

	reply := s.dispatch([]byte(`{"action":"add_follower","id":1,"to_follow":"alice"}`))
	var ret protocol.Ret
	require.NoError(t, json.Unmarshal(reply, &ret))
	assert.Equal(t, types.ErrInvalidParameter, ret.Ret)
}

func TestDispatchFollowAndFetchFollowers(t *testing.T) {
	s := newTestServer()
	s.dispatch([]byte(`{"action":"add_user","username":"alice"}`))
	s.dispatch([]byte(`{"action":"add_user","username":"bob"}`))

	reply := s.dispatch([]byte(`{"action":"add_follower","id":2,"to_follow":"alice"}`))
	assert.JSONEq(t, `{"ret":0}`, string(reply))

	reply = s.dispatch([]byte(`{"action":"get_followers","id":1}`))
	assert.JSONEq(t, `{"followers":[2]}`, string(reply))

	reply = s.dispatch([]byte(`{"action":"get_user_topic","id":2}`))
	assert.JSONEq(t, `{"topic":"notificacao_user_2"}`, string(reply))
}

func TestDispatchPostsSortedOnWire(t *testing.T) {
	s := newTestServer()

	s.dispatch([]byte(`{"action":"add_post","post":{"username":"alice","id":1,"texto":"later","tempoEnvioMensagem":"2024-01-01T10:00:02"}}`))
	s.dispatch([]byte(`{"action":"add_post","post":{"username":"bob","id":2,"texto":"earlier","tempoEnvioMensagem":"2024-01-01T10:00:01"}}`))

	reply := s.dispatch([]byte(`{"action":"get_posts"}`))
	var posts protocol.PostsReply
	require.NoError(t, json.Unmarshal(reply, &posts))
	require.Len(t, posts.Posts, 2)
	assert.Equal(t, "earlier", posts.Posts[0].Texto)
	assert.Equal(t, "later", posts.Posts[1].Texto)
}

func TestDispatchPrivateMessageRoundTrip(t *testing.T) {
	s := newTestServer()
	s.dispatch([]byte(`{"action":"add_user","username":"alice"}`))
	s.dispatch([]byte(`{"action":"add_user","username":"bob"}`))

	reply := s.dispatch([]byte(`{"action":"add_private_message","remetente":"alice","destinatario":"bob","mensagem":"hi","timestamp":"1000"}`))
	assert.JSONEq(t, `{"ret":0}`, string(reply))

	// Both perspectives see the same tuple.
	for _, frame := range []string{
		`{"action":"get_private_messages","remetente":"alice","destinatario":"bob"}`,
		`{"action":"get_private_messages","remetente":"bob","destinatario":"alice"}`,
	} {
		reply = s.dispatch([]byte(frame))
		assert.JSONEq(t, `{"ret":0,"mensagens":[["hi",1000,"alice"]]}`, string(reply))
	}
}

func TestDispatchUnknownUserID(t *testing.T) {
	s := newTestServer()
	reply := s.dispatch([]byte(`{"action":"get_user_id","username":"nobody"}`))
	assert.JSONEq(t, `{"id":-1}`, string(reply))
}

func TestDispatchUnknownActionCode(t *testing.T) {
	s := newTestServer()

	reply := s.dispatch([]byte(`{"action":"drop_tables"}`))
	var ret protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &ret))
	assert.Equal(t, types.ErrUnknownAction, ret.Ret)

	// Frontend-only actions are equally unknown here.
	reply = s.dispatch([]byte(`{"action":"get_timeline"}`))
	require.NoError(t, json.Unmarshal(reply, &ret))
	assert.Equal(t, types.ErrUnknownAction, ret.Ret)
}
