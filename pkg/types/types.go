package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReturnCode is the wire-level result code carried in every reply.
type ReturnCode int

const (
	Success             ReturnCode = 0
	ErrRuntime          ReturnCode = -1
	ErrUsernameTaken    ReturnCode = -2
	ErrInvalidParameter ReturnCode = -3
	ErrUserNotFound     ReturnCode = -4
	ErrUnknownAction    ReturnCode = -99
)

// NotifyTopicPrefix prefixes every per-user notification topic.
const NotifyTopicPrefix = "notificacao_user_"

// ClockSyncTopic is the topic the leader broadcasts clock adjustments on.
const ClockSyncTopic = "clock_sync"

// NotifyTopic derives the notification topic for a user id.
func NotifyTopic(userID int) string {
	return fmt.Sprintf("%s%d", NotifyTopicPrefix, userID)
}

// User is a registered account as the data store sees it.
type User struct {
	ID        int
	Username  string
	Topic     string
	Followers []int
}

// Post is a timeline entry. The JSON keys are wire-normative; the post
// log is kept sorted ascending by TempoEnvioMensagem, which for ISO-8601
// strings coincides with chronological order.
type Post struct {
	Username           string `json:"username"`
	UserID             int    `json:"id"`
	Texto              string `json:"texto"`
	TempoEnvioMensagem string `json:"tempoEnvioMensagem"`
}

// PostTimestamp formats t the way posts carry it on the wire.
func PostTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}

// PrivateMessage is one direct message between two users. On the wire it
// travels as a three-element array [text, timestamp, sender], so it
// marshals to and from that tuple form rather than an object.
type PrivateMessage struct {
	Text      string
	Timestamp int64
	Sender    string
}

// MarshalJSON encodes the message as [text, timestamp, sender].
func (m PrivateMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{m.Text, m.Timestamp, m.Sender})
}

// UnmarshalJSON decodes the [text, timestamp, sender] tuple form.
func (m *PrivateMessage) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("private message tuple has %d elements, want 3", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &m.Text); err != nil {
		return fmt.Errorf("private message text: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &m.Timestamp); err != nil {
		return fmt.Errorf("private message timestamp: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &m.Sender); err != nil {
		return fmt.Errorf("private message sender: %w", err)
	}
	return nil
}

// ServerEntry is one registered app server from the broker's view.
type ServerEntry struct {
	ID            int
	LastHeartbeat time.Time
}
