// Package protocol defines the JSON messages exchanged between clients,
// the broker, app servers and the data store. Every request frame is one
// JSON object carrying an "action" discriminator; ParseRequest and
// ParseControlRequest turn that string dispatch into a typed variant so
// handlers can switch exhaustively and the unknown-action case exists
// only at the parse boundary.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/chirpnet/chirp/pkg/types"
)

// Request action names carried in the "action" field.
const (
	ActionAddUser            = "add_user"
	ActionGetUserID          = "get_user_id"
	ActionAddPost            = "add_post"
	ActionGetPosts           = "get_posts"
	ActionGetUserTopic       = "get_user_topic"
	ActionAddFollower        = "add_follower"
	ActionGetFollowers       = "get_followers"
	ActionAddPrivateMessage  = "add_private_message"
	ActionGetPrivateMessages = "get_private_messages"
	ActionPostText           = "post_text"
	ActionGetTimeline        = "get_timeline"

	ActionGetServerID = "get_server_id"
	ActionListServers = "list_servers"
	ActionWhoIsLeader = "who_is_leader"
	ActionSyncClock   = "sync_clock"
	ActionNotifyUsers = "notify_users"
)

// Request is a parsed frame from the frontend/backend or data store channel.
type Request interface {
	Action() string
}

// AddUser registers a new username.
type AddUser struct {
	Username string `json:"username"`
}

func (AddUser) Action() string { return ActionAddUser }

// GetUserID resolves a username to its id.
type GetUserID struct {
	Username string `json:"username"`
}

func (GetUserID) Action() string { return ActionGetUserID }

// AddPost appends a post to the global timeline.
type AddPost struct {
	Post types.Post `json:"post"`
}

func (AddPost) Action() string { return ActionAddPost }

// GetPosts fetches the full timeline.
type GetPosts struct{}

func (GetPosts) Action() string { return ActionGetPosts }

// GetUserTopic fetches the notification topic for a user id.
type GetUserTopic struct {
	ID int `json:"id"`
}

func (GetUserTopic) Action() string { return ActionGetUserTopic }

// AddFollower makes user ID a follower of the named user.
type AddFollower struct {
	ID       int    `json:"id"`
	ToFollow string `json:"to_follow"`
}

func (AddFollower) Action() string { return ActionAddFollower }

// GetFollowers fetches the follower ids of a user.
type GetFollowers struct {
	ID int `json:"id"`
}

func (GetFollowers) Action() string { return ActionGetFollowers }

// AddPrivateMessage stores a direct message under both conversation ends.
// Timestamp is integer seconds transported as a digit string.
type AddPrivateMessage struct {
	Remetente    string `json:"remetente"`
	Destinatario string `json:"destinatario"`
	Mensagem     string `json:"mensagem"`
	Timestamp    string `json:"timestamp"`
}

func (AddPrivateMessage) Action() string { return ActionAddPrivateMessage }

// GetPrivateMessages fetches a conversation from the sender's perspective.
type GetPrivateMessages struct {
	Remetente    string `json:"remetente"`
	Destinatario string `json:"destinatario"`
}

func (GetPrivateMessages) Action() string { return ActionGetPrivateMessages }

// PostText publishes a timeline post on behalf of a client.
type PostText struct {
	Username           string `json:"username"`
	ID                 int    `json:"id"`
	Texto              string `json:"texto"`
	TempoEnvioMensagem string `json:"tempoEnvioMensagem"`
}

func (PostText) Action() string { return ActionPostText }

// GetTimeline asks for the full post list.
type GetTimeline struct{}

func (GetTimeline) Action() string { return ActionGetTimeline }

// ControlRequest is a parsed frame from the broker control channel.
type ControlRequest interface {
	ControlAction() string
}

// GetServerID asks the broker for a fresh server id.
type GetServerID struct{}

func (GetServerID) ControlAction() string { return ActionGetServerID }

// ListServers asks for the currently registered server ids.
type ListServers struct{}

func (ListServers) ControlAction() string { return ActionListServers }

// WhoIsLeader asks which registered server currently leads.
type WhoIsLeader struct{}

func (WhoIsLeader) ControlAction() string { return ActionWhoIsLeader }

// SyncClock asks the broker to broadcast a clock value on the bus.
type SyncClock struct {
	Timestamp float64 `json:"timestamp"`
}

func (SyncClock) ControlAction() string { return ActionSyncClock }

// NotifyUsers asks the broker to publish Msg on each listed topic.
// UsersToNotify maps follower id (as a decimal string, JSON object keys
// are always strings) to that follower's topic.
type NotifyUsers struct {
	PostOwner     string            `json:"post_owner"`
	UsersToNotify map[string]string `json:"users_to_notify"`
	Msg           string            `json:"msg"`
}

func (NotifyUsers) ControlAction() string { return ActionNotifyUsers }

// UnknownActionError reports a frame whose action has no variant.
type UnknownActionError struct {
	ActionName string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.ActionName)
}

type envelope struct {
	Action string `json:"action"`
}

// ParseRequest decodes one request frame into its typed variant.
func ParseRequest(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed request frame: %w", err)
	}

	var req Request
	switch env.Action {
	case ActionAddUser:
		req = &AddUser{}
	case ActionGetUserID:
		req = &GetUserID{}
	case ActionAddPost:
		req = &AddPost{}
	case ActionGetPosts:
		return &GetPosts{}, nil
	case ActionGetUserTopic:
		req = &GetUserTopic{}
	case ActionAddFollower:
		req = &AddFollower{}
	case ActionGetFollowers:
		req = &GetFollowers{}
	case ActionAddPrivateMessage:
		req = &AddPrivateMessage{}
	case ActionGetPrivateMessages:
		req = &GetPrivateMessages{}
	case ActionPostText:
		req = &PostText{}
	case ActionGetTimeline:
		return &GetTimeline{}, nil
	default:
		return nil, &UnknownActionError{ActionName: env.Action}
	}

	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decoding %s request: %w", env.Action, err)
	}
	return req, nil
}

// ParseControlRequest decodes one control channel frame.
func ParseControlRequest(data []byte) (ControlRequest, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed control frame: %w", err)
	}

	switch env.Action {
	case ActionGetServerID:
		return &GetServerID{}, nil
	case ActionListServers:
		return &ListServers{}, nil
	case ActionWhoIsLeader:
		return &WhoIsLeader{}, nil
	case ActionSyncClock:
		req := &SyncClock{}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("decoding sync_clock request: %w", err)
		}
		return req, nil
	case ActionNotifyUsers:
		req := &NotifyUsers{}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("decoding notify_users request: %w", err)
		}
		return req, nil
	default:
		return nil, &UnknownActionError{ActionName: env.Action}
	}
}
