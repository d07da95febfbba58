package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/automoto/arrowflight/shared/messages"
	"github.com/automoto/arrowflight/shared/spawn"
	"github.com/coder/websocket"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "unknown"
}

var ErrNotConnected = errors.New("not connected")

const eventBufferSize = 64

// Client manages a WebSocket connection to the arrow server.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu deadlock.RWMutex

	state     ClientState
	lastError error
	conn      *websocket.Conn

	snapshotCh chan esync.WorldSnapshot // size-1 buffered; latest wins
	eventCh    chan any                 // arrow events and launch rejections, in arrival order
}

func NewClient() *Client {
	return &Client{
		state:      StateDisconnected,
		snapshotCh: make(chan esync.WorldSnapshot, 1),
		eventCh:    make(chan any, eventBufferSize),
	}
}

// Connect dials the server in a background goroutine.
func (c *Client) Connect(address string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		log.Info().Str("address", address).Msg("connected to arrow server")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, snapshot esync.WorldSnapshot) {
		select { // drain stale, push latest
		case <-c.snapshotCh:
		default:
		}
		c.snapshotCh <- snapshot
	})

	router.On(func(_ *router.NetworkClient, evt messages.ArrowLaunchEvent) {
		c.pushEvent(evt)
	})

	router.On(func(_ *router.NetworkClient, evt messages.ArrowStuckEvent) {
		c.pushEvent(evt)
	})

	router.On(func(_ *router.NetworkClient, evt messages.ArrowDamageEvent) {
		c.pushEvent(evt)
	})

	router.On(func(_ *router.NetworkClient, msg messages.LaunchRejected) {
		log.Warn().Str("reason", msg.Reason).Msg("launch rejected")
		c.pushEvent(msg)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		log.Info().AnErr("reason", err).Msg("disconnected")
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		log.Warn().Err(err).Msg("client error")
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// LatestSnapshot returns the most recent WorldSnapshot, or nil. Non-blocking.
func (c *Client) LatestSnapshot() *esync.WorldSnapshot {
	select {
	case snap := <-c.snapshotCh:
		return &snap
	default:
		return nil
	}
}

// DrainEvents returns all pending events, non-blocking.
func (c *Client) DrainEvents() []any {
	return drainChan(c.eventCh)
}

// Launch asks the server for a parameterised flight.
func (c *Client) Launch(req messages.LaunchRequest) error {
	return c.SendMessage(req)
}

// LaunchPoints asks the server to follow a pre-rendered point sequence.
func (c *Client) LaunchPoints(points []mgl64.Vec3) error {
	return c.SendMessage(messages.LegacyLaunchRequest{Points: points})
}

// Stop asks the server to end a flight early.
func (c *Client) Stop(id spawn.ObjectID) error {
	return c.SendMessage(messages.StopRequest{ArrowID: uint(id)})
}

func (c *Client) SendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) pushEvent(evt any) {
	select {
	case c.eventCh <- evt:
	default:
		log.Warn().Msgf("event buffer full, dropping %T", evt)
	}
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
