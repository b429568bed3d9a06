package appserver

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

// stubStore implements DataStore in memory and records the order of the
// calls it receives.
type stubStore struct {
	calls []string

	addUserReply protocol.AddUserReply
	addUserErr   error
	followRet    types.ReturnCode
	addPostErr   error
	posts        []types.Post
	followers    []int
	topics       map[int]string
	pmRet        types.ReturnCode
	conversation protocol.PrivateMessagesReply
}

func (s *stubStore) AddUser(username string) (protocol.AddUserReply, error) {
	s.calls = append(s.calls, "add_user")
	return s.addUserReply, s.addUserErr
}

func (s *stubStore) AddFollower(followerID int, toFollow string) (types.ReturnCode, error) {
	s.calls = append(s.calls, "add_follower")
	return s.followRet, nil
}

func (s *stubStore) AddPost(post types.Post) error {
	s.calls = append(s.calls, "add_post")
	s.posts = append(s.posts, post)
	return s.addPostErr
}

func (s *stubStore) Posts() ([]types.Post, error) {
	s.calls = append(s.calls, "get_posts")
	return s.posts, nil
}

func (s *stubStore) Followers(id int) ([]int, error) {
	s.calls = append(s.calls, "get_followers")
	return s.followers, nil
}

func (s *stubStore) UserTopic(id int) (string, error) {
	s.calls = append(s.calls, "get_user_topic")
	return s.topics[id], nil
}

func (s *stubStore) AddPrivateMessage(req *protocol.AddPrivateMessage) (types.ReturnCode, error) {
	s.calls = append(s.calls, "add_private_message")
	return s.pmRet, nil
}

func (s *stubStore) PrivateMessages(remetente, destinatario string) (protocol.PrivateMessagesReply, error) {
	s.calls = append(s.calls, "get_private_messages")
	return s.conversation, nil
}

// stubControl implements ControlPlane and captures fan-out requests.
type stubControl struct {
	notifyOwner string
	notifyUsers map[int]string
	notifyMsg   string
	notifyErr   error
	notified    []int

	// afterStore is set true when NotifyUsers runs after the post was
	// stored, which is the required ordering.
	store      *stubStore
	afterStore bool
}

func (c *stubControl) RegisterServer() (int, error) { return 1, nil }
func (c *stubControl) ListServers() ([]string, error) {
	return []string{"1"}, nil
}
func (c *stubControl) Leader() (*int, error) { return nil, nil }
func (c *stubControl) SyncClock(timestamp float64) error { return nil }

func (c *stubControl) NotifyUsers(postOwner string, usersToNotify map[int]string, msg string) ([]int, error) {
	c.notifyOwner = postOwner
	c.notifyUsers = usersToNotify
	c.notifyMsg = msg
	if c.store != nil {
		for _, call := range c.store.calls {
			if call == "add_post" {
				c.afterStore = true
			}
		}
	}
	return c.notified, c.notifyErr
}

func newTestServer(store *stubStore, control *stubControl) *Server {
	return New(config.Default(), store, control)
}

func TestDispatchAddUserSuccess(t *testing.T) {
	store := &stubStore{addUserReply: protocol.AddUserReply{Ret: types.Success, ID: 1, Topic: "notificacao_user_1"}}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"add_user","username":"alice"}`))

	var decoded protocol.AddUserReply
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.Success, decoded.Ret)
	assert.Equal(t, 1, decoded.ID)
	assert.Equal(t, "notificacao_user_1", decoded.Topic)
}

func TestDispatchAddUserTaken(t *testing.T) {
	store := &stubStore{addUserReply: protocol.AddUserReply{Ret: types.ErrUsernameTaken}}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"add_user","username":"alice"}`))

	// Failures carry the bare return code, no id or topic.
	var fields map[string]any
	require.NoError(t, json.Unmarshal(reply, &fields))
	assert.Equal(t, float64(types.ErrUsernameTaken), fields["ret"])
	assert.NotContains(t, fields, "id")
}

func TestDispatchStoreFailureIsRuntimeError(t *testing.T) {
	store := &stubStore{addUserErr: errors.New("connection refused")}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"add_user","username":"alice"}`))

	var decoded protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.ErrRuntime, decoded.Ret)
	assert.Contains(t, decoded.Msg, "Erro: ")
}

func TestDispatchUnknownAction(t *testing.T) {
	srv := newTestServer(&stubStore{}, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"fly"}`))

	var decoded protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.ErrUnknownAction, decoded.Ret)
	assert.Equal(t, "Ação desconhecida", decoded.Msg)
}

func TestDispatchPostTextFansOutBeforeReplying(t *testing.T) {
	store := &stubStore{
		followers: []int{2, 3},
		topics:    map[int]string{2: "notificacao_user_2", 3: "notificacao_user_3"},
	}
	control := &stubControl{store: store, notified: []int{2, 3}}
	srv := newTestServer(store, control)

	reply := srv.dispatch([]byte(`{"action":"post_text","username":"alice","id":1,"texto":"hello","tempoEnvioMensagem":"2024-01-01T10:00:01"}`))

	var decoded protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.Success, decoded.Ret)
	assert.Equal(t, "Postagem recebida!", decoded.Msg)

	// The post was stored before the fan-out was requested.
	assert.True(t, control.afterStore)
	assert.Equal(t, "alice", control.notifyOwner)
	assert.Equal(t, map[int]string{2: "notificacao_user_2", 3: "notificacao_user_3"}, control.notifyUsers)
	assert.Equal(t, "Novo post do alice disponível!", control.notifyMsg)
}

func TestDispatchPostTextNotifyFailure(t *testing.T) {
	store := &stubStore{followers: []int{2}, topics: map[int]string{2: "notificacao_user_2"}}
	control := &stubControl{notifyErr: errors.New("broker unreachable")}
	srv := newTestServer(store, control)

	reply := srv.dispatch([]byte(`{"action":"post_text","username":"alice","id":1,"texto":"x","tempoEnvioMensagem":"2024-01-01T10:00:01"}`))

	var decoded protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.ErrRuntime, decoded.Ret)
}

func TestDispatchGetTimelineRawArray(t *testing.T) {
	store := &stubStore{posts: []types.Post{
		{Username: "alice", UserID: 1, Texto: "hello", TempoEnvioMensagem: "2024-01-01T10:00:01"},
	}}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"get_timeline"}`))

	// The timeline reply is a bare JSON array, not wrapped in ret.
	var posts []types.Post
	require.NoError(t, json.Unmarshal(reply, &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Texto)
}

func TestDispatchGetTimelineEmpty(t *testing.T) {
	srv := newTestServer(&stubStore{}, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"get_timeline"}`))
	assert.JSONEq(t, `[]`, string(reply))
}

func TestDispatchPrivateMessageForwarded(t *testing.T) {
	store := &stubStore{pmRet: types.Success}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"add_private_message","remetente":"alice","destinatario":"bob","mensagem":"hi","timestamp":"1000"}`))

	var decoded protocol.Ret
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.Success, decoded.Ret)
	assert.Contains(t, store.calls, "add_private_message")
}

func TestDispatchGetPrivateMessages(t *testing.T) {
	store := &stubStore{conversation: protocol.PrivateMessagesReply{
		Ret:       types.Success,
		Mensagens: []types.PrivateMessage{{Text: "hi", Timestamp: 1000, Sender: "alice"}},
	}}
	srv := newTestServer(store, &stubControl{})

	reply := srv.dispatch([]byte(`{"action":"get_private_messages","remetente":"alice","destinatario":"bob"}`))
	assert.JSONEq(t, `{"ret":0,"mensagens":[["hi",1000,"alice"]]}`, string(reply))
}

func TestDispatchDataStoreActionRejected(t *testing.T) {
	srv := newTestServer(&stubStore{}, &stubControl{})

	// Internal data store actions are not served on the client channel.
	reply := srv.dispatch([]byte(`{"action":"get_followers","id":1}`))

	var decoded protocol.RetMsg
	require.NoError(t, json.Unmarshal(reply, &decoded))
	assert.Equal(t, types.ErrUnknownAction, decoded.Ret)
}
