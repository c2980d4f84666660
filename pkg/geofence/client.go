package geofence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/openuav/missionkit/pkg/geo"
)

// ReplyTimeout is how long the client waits for the server's reply before
// declaring it unavailable.
const ReplyTimeout = time.Second

// ErrUnavailable is returned when the geofence server does not reply within
// ReplyTimeout. Retrying is the caller's decision.
var ErrUnavailable = errors.New("geofence server did not reply")

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "geofence-client"))
	}
}

// WithReplyTimeout overrides the reply deadline.
func WithReplyTimeout(timeout time.Duration) func(*Client) {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client speaks the JSON request/reply protocol to a geofence server over a
// ZeroMQ REQ socket. The transport is exclusive to the client instance;
// calls are serialized.
type Client struct {
	endpoint string
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	sock zmq4.Socket
}

// NewClient returns a client for the given ZeroMQ endpoint, e.g.
// "tcp://127.0.0.1:14580". The connection is established lazily.
func NewClient(endpoint string, options ...func(*Client)) *Client {
	c := Client{
		endpoint: endpoint,
		timeout:  ReplyTimeout,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Close releases the socket. The client may be reused; the next call
// reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

// Status checks that the server is reachable and answering.
func (c *Client) Status(ctx context.Context) error {
	reply, err := c.roundTrip(ctx, wireRequest{Op: opStatus})
	if err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("geofence server reported not ok")
	}
	return nil
}

// ValidateWaypoint asks the server whether moving from one coordinate to
// another is allowed. The reason is empty when valid.
func (c *Client) ValidateWaypoint(ctx context.Context, from, to geo.Coordinate) (bool, string, error) {
	reply, err := c.roundTrip(ctx, wireRequest{
		Op:   opWaypoint,
		From: &wirePoint{Lat: from.Lat, Lon: from.Lon, Alt: from.Alt},
		To:   &wirePoint{Lat: to.Lat, Lon: to.Lon, Alt: to.Alt},
	})
	if err != nil {
		return false, "", err
	}
	return reply.Valid, reply.Reason, nil
}

// ValidateSpeed asks the server whether a speed is within bounds.
func (c *Client) ValidateSpeed(ctx context.Context, speed float64) (bool, error) {
	reply, err := c.roundTrip(ctx, wireRequest{Op: opSpeed, Speed: speed})
	if err != nil {
		return false, err
	}
	return reply.Valid, nil
}

// ValidateTakeoff asks the server whether a takeoff to alt at (lat, lon) is
// allowed.
func (c *Client) ValidateTakeoff(ctx context.Context, lat, lon, alt float64) (bool, error) {
	reply, err := c.roundTrip(ctx, wireRequest{Op: opTakeoff, Lat: lat, Lon: lon, Alt: alt})
	if err != nil {
		return false, err
	}
	return reply.Valid, nil
}

func (c *Client) roundTrip(ctx context.Context, req wireRequest) (wireReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock == nil {
		sock := zmq4.NewReq(context.Background())
		if err := sock.Dial(c.endpoint); err != nil {
			return wireReply{}, fmt.Errorf("%w: dialing %s: %v", ErrUnavailable, c.endpoint, err)
		}
		c.sock = sock
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return wireReply{}, fmt.Errorf("encoding geofence request: %w", err)
	}

	if err := c.sock.Send(zmq4.NewMsg(payload)); err != nil {
		c.closeLocked()
		return wireReply{}, fmt.Errorf("%w: send failed: %v", ErrUnavailable, err)
	}

	type recvResult struct {
		msg zmq4.Msg
		err error
	}
	recvCh := make(chan recvResult, 1)
	sock := c.sock
	go func() {
		msg, err := sock.Recv()
		recvCh <- recvResult{msg, err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-recvCh:
		if res.err != nil {
			c.closeLocked()
			return wireReply{}, fmt.Errorf("%w: recv failed: %v", ErrUnavailable, res.err)
		}
		var reply wireReply
		if err := json.Unmarshal(res.msg.Bytes(), &reply); err != nil {
			return wireReply{}, fmt.Errorf("decoding geofence reply: %w", err)
		}
		return reply, nil

	case <-timer.C:
		// A REQ socket that missed its reply cannot send again; drop it
		// and reconnect on the next call.
		c.closeLocked()
		return wireReply{}, ErrUnavailable

	case <-ctx.Done():
		c.closeLocked()
		return wireReply{}, ctx.Err()
	}
}
