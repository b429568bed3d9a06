package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/config"
	"github.com/chirpnet/chirp/pkg/log"
	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/transport"
	"github.com/chirpnet/chirp/pkg/types"
)

// ErrUsernameTaken is returned by SignUp when the username is in use;
// the caller should prompt for another and retry.
var ErrUsernameTaken = errors.New("username already taken")

// Client is one end user's connection to the cluster: a request socket
// through the broker frontend and a subscription to its own
// notification topic. Notifications drain into a bounded local queue;
// delivery is at-most-once, so when the queue is full an incoming
// notification is dropped rather than blocking the bus.
type Client struct {
	cfg    *config.Config
	logger zerolog.Logger

	username string
	userID   int
	topic    string

	// forcedDelay back-dates outgoing timestamps for clock-skew tests.
	forcedDelay time.Duration

	req *transport.ReqConn
	sub zmq4.Socket

	notifications chan string

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// New creates a client for the configured cluster.
func New(cfg *config.Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:           cfg,
		logger:        log.WithComponent("client"),
		req:           transport.NewReqConn(ctx, cfg.Endpoints.Frontend, cfg.RequestTimeout.Std()),
		notifications: make(chan string, 100),
		ctx:           ctx,
		cancel:        cancel,
		doneCh:        make(chan struct{}),
	}
}

// Username returns the signed-up username.
func (c *Client) Username() string { return c.username }

// UserID returns the assigned user id; 0 before SignUp succeeds.
func (c *Client) UserID() int { return c.userID }

// Topic returns the client's notification topic.
func (c *Client) Topic() string { return c.topic }

// SetForcedDelay back-dates subsequent post and private-message
// timestamps by delay.
func (c *Client) SetForcedDelay(delay time.Duration) {
	c.forcedDelay = delay
	c.logger.Info().Dur("delay", delay).Msg("Forced delay configured")
}

// ForcedDelay returns the configured timestamp back-dating.
func (c *Client) ForcedDelay() time.Duration { return c.forcedDelay }

// stamp is the current wall time minus the forced delay.
func (c *Client) stamp() time.Time {
	return time.Now().Add(-c.forcedDelay)
}

// SignUp registers username with the cluster. On success it subscribes
// to the assigned notification topic and starts draining notifications.
func (c *Client) SignUp(username string) error {
	var reply protocol.AddUserReply
	if err := c.do(&protocol.AddUser{Username: username}, &reply); err != nil {
		return err
	}
	if reply.Ret == types.ErrUsernameTaken {
		return ErrUsernameTaken
	}
	if reply.Ret != types.Success {
		return fmt.Errorf("signup failed with code %d", reply.Ret)
	}

	c.username = username
	c.userID = reply.ID
	c.topic = reply.Topic
	c.logger = log.WithUsername(username)

	if err := c.subscribe(); err != nil {
		return err
	}
	c.logger.Info().Int("id", c.userID).Str("topic", c.topic).Msg("Signed up")
	return nil
}

func (c *Client) subscribe() error {
	sub := zmq4.NewSub(c.ctx, zmq4.WithAutomaticReconnect(true))
	if err := sub.Dial(c.cfg.Endpoints.Notify); err != nil {
		return fmt.Errorf("dialing notification bus %s: %w", c.cfg.Endpoints.Notify, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, c.topic); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.topic, err)
	}
	c.sub = sub

	go c.notificationLoop()
	return nil
}

// notificationLoop drains bus messages into the local queue for later
// display. When the queue is full the message is dropped.
func (c *Client) notificationLoop() {
	defer close(c.doneCh)

	for {
		msg, err := c.sub.Recv()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Msg("Failed to receive notification")
			continue
		}
		select {
		case c.notifications <- string(msg.Bytes()):
		default:
			c.logger.Warn().Msg("Notification queue full, dropping")
		}
	}
}

// Notifications returns and clears the unread notifications.
func (c *Client) Notifications() []string {
	var out []string
	for {
		select {
		case n := <-c.notifications:
			out = append(out, n)
		default:
			return out
		}
	}
}

// PostText publishes a timeline post.
func (c *Client) PostText(text string) (string, error) {
	req := &protocol.PostText{
		Username:           c.username,
		ID:                 c.userID,
		Texto:              text,
		TempoEnvioMensagem: types.PostTimestamp(c.stamp()),
	}
	var reply protocol.RetMsg
	if err := c.do(req, &reply); err != nil {
		return "", err
	}
	if reply.Ret != types.Success {
		return "", fmt.Errorf("post rejected: %s", reply.Msg)
	}
	c.logger.Info().Str("texto", text).Msg("Posted")
	return reply.Msg, nil
}

// Follow makes this user a follower of username.
func (c *Client) Follow(username string) (types.ReturnCode, error) {
	var reply protocol.Ret
	if err := c.do(&protocol.AddFollower{ID: c.userID, ToFollow: username}, &reply); err != nil {
		return types.ErrRuntime, err
	}
	return reply.Ret, nil
}

// Timeline fetches all posts in timeline order.
func (c *Client) Timeline() ([]types.Post, error) {
	data, err := protocol.Encode(&protocol.GetTimeline{})
	if err != nil {
		return nil, err
	}
	resp, err := c.req.RoundTrip(data)
	if err != nil {
		return nil, err
	}
	// The timeline reply is the raw post array, unwrapped.
	var posts []types.Post
	if err := json.Unmarshal(resp, &posts); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}
	return posts, nil
}

// SendPrivateMessage sends a direct message to username.
func (c *Client) SendPrivateMessage(recipient, text string) (types.ReturnCode, error) {
	req := &protocol.AddPrivateMessage{
		Remetente:    c.username,
		Destinatario: recipient,
		Mensagem:     text,
		Timestamp:    strconv.FormatInt(c.stamp().Unix(), 10),
	}
	var reply protocol.Ret
	if err := c.do(req, &reply); err != nil {
		return types.ErrRuntime, err
	}
	return reply.Ret, nil
}

// Conversation fetches the private conversation with username, oldest
// first.
func (c *Client) Conversation(recipient string) ([]types.PrivateMessage, error) {
	var reply protocol.PrivateMessagesReply
	if err := c.do(&protocol.GetPrivateMessages{Remetente: c.username, Destinatario: recipient}, &reply); err != nil {
		return nil, err
	}
	return reply.Mensagens, nil
}

// Close shuts the client down.
func (c *Client) Close() {
	c.cancel()
	c.req.Close()
	if c.sub != nil {
		_ = c.sub.Close()
		<-c.doneCh
	}
}

func (c *Client) do(req protocol.Request, reply any) error {
	data, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	resp, err := c.req.RoundTrip(data)
	if err != nil {
		return fmt.Errorf("%s request: %w", req.Action(), err)
	}
	if err := json.Unmarshal(resp, reply); err != nil {
		return fmt.Errorf("%s reply: %w", req.Action(), err)
	}
	return nil
}
