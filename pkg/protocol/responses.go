package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/chirpnet/chirp/pkg/types"
)

// Ret is the minimal reply: a bare return code.
type Ret struct {
	Ret types.ReturnCode `json:"ret"`
}

// RetMsg is a return code with a human-readable message.
type RetMsg struct {
	Ret types.ReturnCode `json:"ret"`
	Msg string           `json:"msg"`
}

// AddUserReply answers add_user. ID and Topic are meaningful only when
// Ret is Success.
type AddUserReply struct {
	Ret   types.ReturnCode `json:"ret"`
	ID    int              `json:"id"`
	Topic string           `json:"topic"`
}

// UserIDReply answers get_user_id; ID is -1 for unknown usernames.
type UserIDReply struct {
	ID int `json:"id"`
}

// TopicReply answers get_user_topic; Topic is empty for unknown ids.
type TopicReply struct {
	Topic string `json:"topic"`
}

// FollowersReply answers get_followers.
type FollowersReply struct {
	Followers []int `json:"followers"`
}

// PostsReply answers get_posts.
type PostsReply struct {
	Posts []types.Post `json:"posts"`
}

// PrivateMessagesReply answers get_private_messages.
type PrivateMessagesReply struct {
	Ret       types.ReturnCode       `json:"ret"`
	Mensagens []types.PrivateMessage `json:"mensagens"`
}

// ServerIDReply answers get_server_id.
type ServerIDReply struct {
	ServerID int `json:"server_id"`
}

// ServersReply answers list_servers. Ids travel as decimal strings; the
// broker converts its integer registry ids when replying.
type ServersReply struct {
	Servers []string `json:"servers"`
}

// LeaderReply answers who_is_leader; LeaderID is null when the registry
// is empty.
type LeaderReply struct {
	LeaderID *int `json:"leader_id"`
}

// SyncClockReply acknowledges a clock broadcast.
type SyncClockReply struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// NotifyUsersReply acknowledges a fan-out with the notified follower ids.
type NotifyUsersReply struct {
	Status        string `json:"status"`
	NotifiedUsers []int  `json:"notified_users"`
}

// ControlError is the control channel's unknown-action reply.
type ControlError struct {
	Error string `json:"error"`
}

// Encode marshals a request with its action discriminator spliced in.
func Encode(req Request) ([]byte, error) {
	return encodeWithAction(req, req.Action())
}

// EncodeControl marshals a control request with its action discriminator.
func EncodeControl(req ControlRequest) ([]byte, error) {
	return encodeWithAction(req, req.ControlAction())
}

func encodeWithAction(v any, action string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", action, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", action, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	fields["action"], _ = json.Marshal(action)
	return json.Marshal(fields)
}
