package appserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/transport"
	"github.com/chirpnet/chirp/pkg/types"
)

// DataStore is what handlers need from the central store. The concrete
// implementation speaks JSON over a REQ socket; tests substitute stubs.
type DataStore interface {
	AddUser(username string) (protocol.AddUserReply, error)
	AddFollower(followerID int, toFollow string) (types.ReturnCode, error)
	AddPost(post types.Post) error
	Posts() ([]types.Post, error)
	Followers(id int) ([]int, error)
	UserTopic(id int) (string, error)
	AddPrivateMessage(req *protocol.AddPrivateMessage) (types.ReturnCode, error)
	PrivateMessages(remetente, destinatario string) (protocol.PrivateMessagesReply, error)
}

// StoreClient talks to the data store's REP socket.
type StoreClient struct {
	conn *transport.ReqConn
}

// NewStoreClient creates a client for the data store at endpoint.
func NewStoreClient(ctx context.Context, endpoint string, timeout time.Duration) *StoreClient {
	return &StoreClient{conn: transport.NewReqConn(ctx, endpoint, timeout)}
}

// Close releases the connection.
func (c *StoreClient) Close() {
	c.conn.Close()
}

func (c *StoreClient) do(req protocol.Request, reply any) error {
	data, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	resp, err := c.conn.RoundTrip(data)
	if err != nil {
		return fmt.Errorf("data store %s: %w", req.Action(), err)
	}
	if err := json.Unmarshal(resp, reply); err != nil {
		return fmt.Errorf("data store %s reply: %w", req.Action(), err)
	}
	return nil
}

func (c *StoreClient) AddUser(username string) (protocol.AddUserReply, error) {
	var reply protocol.AddUserReply
	err := c.do(&protocol.AddUser{Username: username}, &reply)
	return reply, err
}

func (c *StoreClient) AddFollower(followerID int, toFollow string) (types.ReturnCode, error) {
	var reply protocol.Ret
	if err := c.do(&protocol.AddFollower{ID: followerID, ToFollow: toFollow}, &reply); err != nil {
		return types.ErrRuntime, err
	}
	return reply.Ret, nil
}

func (c *StoreClient) AddPost(post types.Post) error {
	var reply protocol.Ret
	return c.do(&protocol.AddPost{Post: post}, &reply)
}

func (c *StoreClient) Posts() ([]types.Post, error) {
	var reply protocol.PostsReply
	if err := c.do(&protocol.GetPosts{}, &reply); err != nil {
		return nil, err
	}
	return reply.Posts, nil
}

func (c *StoreClient) Followers(id int) ([]int, error) {
	var reply protocol.FollowersReply
	if err := c.do(&protocol.GetFollowers{ID: id}, &reply); err != nil {
		return nil, err
	}
	return reply.Followers, nil
}

func (c *StoreClient) UserTopic(id int) (string, error) {
	var reply protocol.TopicReply
	if err := c.do(&protocol.GetUserTopic{ID: id}, &reply); err != nil {
		return "", err
	}
	return reply.Topic, nil
}

func (c *StoreClient) AddPrivateMessage(req *protocol.AddPrivateMessage) (types.ReturnCode, error) {
	var reply protocol.Ret
	if err := c.do(req, &reply); err != nil {
		return types.ErrRuntime, err
	}
	return reply.Ret, nil
}

func (c *StoreClient) PrivateMessages(remetente, destinatario string) (protocol.PrivateMessagesReply, error) {
	var reply protocol.PrivateMessagesReply
	err := c.do(&protocol.GetPrivateMessages{Remetente: remetente, Destinatario: destinatario}, &reply)
	return reply, err
}
