package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/protocol"
)

func TestHandleControlRegistration(t *testing.T) {
	b := New(config.Default())

	reply := b.handleControl([]byte(`{"action":"get_server_id"}`))
	var first protocol.ServerIDReply
	require.NoError(t, json.Unmarshal(reply, &first))
	assert.Equal(t, 1, first.ServerID)

	reply = b.handleControl([]byte(`{"action":"get_server_id"}`))
	var second protocol.ServerIDReply
	require.NoError(t, json.Unmarshal(reply, &second))
	assert.Equal(t, 2, second.ServerID)
}

func TestHandleControlListServers(t *testing.T) {
	b := New(config.Default())
	b.handleControl([]byte(`{"action":"get_server_id"}`))
	b.handleControl([]byte(`{"action":"get_server_id"}`))

	reply := b.handleControl([]byte(`{"action":"list_servers"}`))
	var servers protocol.ServersReply
	require.NoError(t, json.Unmarshal(reply, &servers))
	assert.Equal(t, []string{"1", "2"}, servers.Servers)
}

func TestHandleControlWhoIsLeader(t *testing.T) {
	b := New(config.Default())

	// Empty registry: leader is null.
	reply := b.handleControl([]byte(`{"action":"who_is_leader"}`))
	assert.JSONEq(t, `{"leader_id":null}`, string(reply))

	b.handleControl([]byte(`{"action":"get_server_id"}`))
	b.handleControl([]byte(`{"action":"get_server_id"}`))

	reply = b.handleControl([]byte(`{"action":"who_is_leader"}`))
	assert.JSONEq(t, `{"leader_id":2}`, string(reply))
}

func TestHandleControlUnknownAction(t *testing.T) {
	b := New(config.Default())

	reply := b.handleControl([]byte(`{"action":"take_over"}`))
	assert.JSONEq(t, `{"error":"Ação desconhecida"}`, string(reply))
}

func TestKindOfTopic(t *testing.T) {
	assert.Equal(t, "user_notification", kindOf("notificacao_user_2"))
	assert.Equal(t, "clock_sync", kindOf("clock_sync"))
}
