// Package transport wraps the request/reply socket pattern with the
// bounded round-trip every chirp process uses. A hung peer surfaces as
// ErrTimeout instead of blocking a loop forever.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
)

// ErrTimeout reports a request/reply round-trip that exceeded its bound.
var ErrTimeout = errors.New("request timed out")

// ReqConn is a REQ connection with a bounded round-trip. A REQ socket is
// unusable after a missed reply, so a timeout closes the socket and the
// next call redials. One mutex serializes callers; the lockstep
// send/recv pattern allows no interleaving anyway.
type ReqConn struct {
	mu       sync.Mutex
	ctx      context.Context
	endpoint string
	timeout  time.Duration
	sock     zmq4.Socket
}

// NewReqConn creates a connection to endpoint. Dialing is lazy; the
// first round-trip connects.
func NewReqConn(ctx context.Context, endpoint string, timeout time.Duration) *ReqConn {
	return &ReqConn{
		ctx:      ctx,
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// RoundTrip sends one frame and waits for the reply, within the bound.
func (c *ReqConn) RoundTrip(req []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock == nil {
		if err := c.dial(); err != nil {
			return nil, err
		}
	}

	if err := c.send(req); err != nil {
		c.reset()
		return nil, err
	}
	resp, err := c.recv()
	if err != nil {
		c.reset()
		return nil, err
	}
	return resp, nil
}

// Close releases the underlying socket.
func (c *ReqConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *ReqConn) dial() error {
	sock := zmq4.NewReq(c.ctx, zmq4.WithAutomaticReconnect(true))
	if err := sock.Dial(c.endpoint); err != nil {
		return fmt.Errorf("dialing %s: %w", c.endpoint, err)
	}
	c.sock = sock
	return nil
}

func (c *ReqConn) reset() {
	if c.sock != nil {
		_ = c.sock.Close()
		c.sock = nil
	}
}

func (c *ReqConn) send(data []byte) error {
	sock := c.sock
	errCh := make(chan error, 1)
	go func() { errCh <- sock.Send(zmq4.NewMsg(data)) }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(c.timeout):
		return fmt.Errorf("sending to %s: %w", c.endpoint, ErrTimeout)
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

func (c *ReqConn) recv() ([]byte, error) {
	sock := c.sock
	type result struct {
		msg zmq4.Msg
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		msg, err := sock.Recv()
		resCh <- result{msg: msg, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg.Bytes(), nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("awaiting reply from %s: %w", c.endpoint, ErrTimeout)
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}
