package appserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/transport"
)

// ControlPlane is what the server needs from the broker's control
// channel: registration, membership, election and fan-out.
type ControlPlane interface {
	RegisterServer() (int, error)
	ListServers() ([]string, error)
	Leader() (*int, error)
	SyncClock(timestamp float64) error
	NotifyUsers(postOwner string, usersToNotify map[int]string, msg string) ([]int, error)
}

// ControlClient talks to the broker's control REP socket.
type ControlClient struct {
	conn *transport.ReqConn
}

// NewControlClient creates a client for the control channel at endpoint.
func NewControlClient(ctx context.Context, endpoint string, timeout time.Duration) *ControlClient {
	return &ControlClient{conn: transport.NewReqConn(ctx, endpoint, timeout)}
}

// Close releases the connection.
func (c *ControlClient) Close() {
	c.conn.Close()
}

func (c *ControlClient) do(req protocol.ControlRequest, reply any) error {
	data, err := protocol.EncodeControl(req)
	if err != nil {
		return err
	}
	resp, err := c.conn.RoundTrip(data)
	if err != nil {
		return fmt.Errorf("control %s: %w", req.ControlAction(), err)
	}
	if err := json.Unmarshal(resp, reply); err != nil {
		return fmt.Errorf("control %s reply: %w", req.ControlAction(), err)
	}
	return nil
}

func (c *ControlClient) RegisterServer() (int, error) {
	var reply protocol.ServerIDReply
	if err := c.do(&protocol.GetServerID{}, &reply); err != nil {
		return 0, err
	}
	return reply.ServerID, nil
}

func (c *ControlClient) ListServers() ([]string, error) {
	var reply protocol.ServersReply
	if err := c.do(&protocol.ListServers{}, &reply); err != nil {
		return nil, err
	}
	return reply.Servers, nil
}

func (c *ControlClient) Leader() (*int, error) {
	var reply protocol.LeaderReply
	if err := c.do(&protocol.WhoIsLeader{}, &reply); err != nil {
		return nil, err
	}
	return reply.LeaderID, nil
}

func (c *ControlClient) SyncClock(timestamp float64) error {
	var reply protocol.SyncClockReply
	return c.do(&protocol.SyncClock{Timestamp: timestamp}, &reply)
}

func (c *ControlClient) NotifyUsers(postOwner string, usersToNotify map[int]string, msg string) ([]int, error) {
	wire := make(map[string]string, len(usersToNotify))
	for id, topic := range usersToNotify {
		wire[strconv.Itoa(id)] = topic
	}
	var reply protocol.NotifyUsersReply
	if err := c.do(&protocol.NotifyUsers{PostOwner: postOwner, UsersToNotify: wire, Msg: msg}, &reply); err != nil {
		return nil, err
	}
	return reply.NotifiedUsers, nil
}
