// Package push defines the real-time channel the coordinator listens to.
//
// A Channel owns its connection and reconnects on its own. It reports connection
// changes as events on the same stream as order events, so a consumer sees them
// in the order they happened.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/transport/converters"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/viper"
)

// Wire event names.
const (
	NameConnect        = "connect"
	NameDisconnect     = "disconnect"
	NameJoin           = "join"
	NameLeave          = "leave"
	NameJoined         = "joined"
	NameOrderNew       = "order:new"
	NameOrderUpdated   = "order:updated"
	NameOrderCancelled = "order:cancelled"
)

// ErrNotConnected is returned by Join while the channel has no live connection.
// The next Connected event is the moment to join again.
var ErrNotConnected = errors.New("push channel not connected")

// ErrUnknownEvent is returned by Decode for event names the client does not handle.
var ErrUnknownEvent = errors.New("unknown push event")

// Kind enumerates the events a Channel emits.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindDisconnected
	KindJoined
	KindOrderNew
	KindOrderUpdated
	KindOrderCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConnected:
		return NameConnect
	case KindDisconnected:
		return NameDisconnect
	case KindJoined:
		return NameJoined
	case KindOrderNew:
		return NameOrderNew
	case KindOrderUpdated:
		return NameOrderUpdated
	case KindOrderCancelled:
		return NameOrderCancelled
	default:
		return "unknown"
	}
}

// Event is one item of the channel stream. Only the field matching Kind is set.
type Event struct {
	Kind    Kind
	Room    string
	Order   order.Order
	Patch   order.Patch
	OrderID string
}

// Channel is a room-scoped push connection.
type Channel interface {
	// Run connects and delivers events to out until ctx is done. It reconnects
	// with backoff after connection loss and emits Connected/Disconnected around
	// every live connection.
	Run(ctx context.Context, out chan<- Event) error
	// Join subscribes the live connection to room and leaves the previously joined
	// one. Joining the current room again is a no-op.
	Join(ctx context.Context, room string) error
	Close() error
}

// Decode converts a named wire payload into an Event.
func Decode(name string, data []byte) (Event, error) {
	switch name {
	case NameJoined:
		var dto converters.JoinedDTO
		if len(data) > 0 {
			if err := json.Unmarshal(data, &dto); err != nil {
				return Event{}, fmt.Errorf("failed to decode joined: %w", err)
			}
		}

		return Event{Kind: KindJoined, Room: dto.Room}, nil
	case NameOrderNew:
		o, err := converters.DecodeOrder(data)
		if err != nil {
			return Event{}, err
		}

		return Event{Kind: KindOrderNew, Order: o}, nil
	case NameOrderUpdated:
		p, err := converters.DecodePatch(data)
		if err != nil {
			return Event{}, err
		}

		return Event{Kind: KindOrderUpdated, Patch: p}, nil
	case NameOrderCancelled:
		id, err := converters.DecodeCancel(data)
		if err != nil {
			return Event{}, err
		}

		return Event{Kind: KindOrderCancelled, OrderID: id}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// Emit delivers ev unless ctx is done first.
func Emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewBackoff returns the reconnect schedule configured under push.reconnect.
func NewBackoff() retry.Backoff {
	base := time.Duration(viper.GetInt("push.reconnect.base_millis")) * time.Millisecond
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := time.Duration(viper.GetInt("push.reconnect.max_seconds")) * time.Second
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	return retry.WithCappedDuration(ceiling, retry.WithJitterPercent(10, retry.NewExponential(base)))
}

// SessionFunc runs one connection until it ends. connected reports whether the
// connection came up before ending.
type SessionFunc func(ctx context.Context) (connected bool, err error)

// RunWithReconnect calls session until ctx is done. Failed dials back off
// exponentially; the schedule restarts after every connection that came up.
func RunWithReconnect(ctx context.Context, newBackoff func() retry.Backoff, session SessionFunc) error {
	for {
		err := retry.Do(ctx, newBackoff(), func(ctx context.Context) error {
			connected, err := session(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if connected {
				return nil
			}
			if err == nil {
				err = ErrNotConnected
			}

			return retry.RetryableError(err)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
