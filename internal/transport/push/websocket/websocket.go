// Package websocket implements the push channel over a WebSocket connection that
// carries {"event", "data"} envelopes.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corray333/backend-labs/kds/internal/transport/push"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Channel is a push.Channel over gorilla/websocket.
type Channel struct {
	url        string
	dialer     *websocket.Dialer
	newBackoff func() retry.Backoff
	log        *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	room string
}

type option func(*Channel)

// WithURL sets the server endpoint, e.g. ws://localhost:3001/ws.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithURL(url string) option {
	return func(c *Channel) {
		c.url = url
	}
}

// WithBackoff overrides the reconnect schedule.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBackoff(newBackoff func() retry.Backoff) option {
	return func(c *Channel) {
		c.newBackoff = newBackoff
	}
}

// WithLogger sets the logger.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLogger(log *slog.Logger) option {
	return func(c *Channel) {
		c.log = log
	}
}

// NewChannel creates a channel for push.websocket.url unless WithURL is given.
func NewChannel(opts ...option) *Channel {
	c := &Channel{
		url:        viper.GetString("push.websocket.url"),
		dialer:     websocket.DefaultDialer,
		newBackoff: push.NewBackoff,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("push", "websocket", "url", c.url)

	return c
}

// Run implements push.Channel.
func (c *Channel) Run(ctx context.Context, out chan<- push.Event) error {
	return push.RunWithReconnect(ctx, c.newBackoff, func(ctx context.Context) (bool, error) {
		return c.session(ctx, out)
	})
}

func (c *Channel) session(ctx context.Context, out chan<- push.Event) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.log.Warn("Push channel dial failed", "error", err)

		return false, fmt.Errorf("failed to dial push channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.room = ""
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.room = ""
		c.mu.Unlock()
		conn.Close()
	}()

	c.log.Info("Push channel connected")
	if !push.Emit(ctx, out, push.Event{Kind: push.KindConnected}) {
		return true, nil
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("Push channel connection lost", "error", err)
			}
			c.detach(conn)
			push.Emit(ctx, out, push.Event{Kind: push.KindDisconnected})

			return true, err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn("Malformed push message dropped", "error", err)
			continue
		}
		ev, err := push.Decode(env.Event, env.Data)
		if err != nil {
			c.log.Warn("Push event dropped", "event", env.Event, "error", err)
			continue
		}
		if !push.Emit(ctx, out, ev) {
			return true, nil
		}
	}
}

// detach makes Join fail fast once the connection is known to be dead.
func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.room = ""
	}
}

// Join implements push.Channel. An empty room only leaves the current one.
func (c *Channel) Join(ctx context.Context, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return push.ErrNotConnected
	}
	if c.room == room {
		return nil
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(dl); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if c.room != "" {
		if err := c.send(push.NameLeave, c.room); err != nil {
			return err
		}
		c.room = ""
	}
	if room != "" {
		if err := c.send(push.NameJoin, room); err != nil {
			return err
		}
		c.room = room
		c.log.Info("Push channel room joined", "room", room)
	}

	return nil
}

func (c *Channel) send(event, room string) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}
	if err := c.conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}

	return nil
}

// Close drops the live connection, if any. Run reconnects unless its context is done.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}
