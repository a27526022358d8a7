package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/transport/push"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (string, <-chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		<-done
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(done) })

	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func nextEvent(t *testing.T, out <-chan push.Event) push.Event {
	t.Helper()
	select {
	case ev := <-out:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push event")
		return push.Event{}
	}
}

func nextConn(t *testing.T, conns <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))

	return env
}

func writeRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func fastBackoff() retry.Backoff {
	return retry.NewConstant(10 * time.Millisecond)
}

func TestChannel_JoinEventsAndReconnect(t *testing.T) {
	url, conns := newTestServer(t)
	ch := NewChannel(WithURL(url), WithBackoff(fastBackoff))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan push.Event, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- ch.Run(ctx, out) }()

	server := nextConn(t, conns)
	require.Equal(t, push.KindConnected, nextEvent(t, out).Kind)

	require.NoError(t, ch.Join(ctx, "owner01"))
	require.NoError(t, ch.Join(ctx, "owner01"))
	require.NoError(t, ch.Join(ctx, "owner02"))

	env := readEnvelope(t, server)
	assert.Equal(t, "join", env.Event)
	assert.JSONEq(t, `"owner01"`, string(env.Data))
	env = readEnvelope(t, server)
	assert.Equal(t, "leave", env.Event)
	assert.JSONEq(t, `"owner01"`, string(env.Data))
	env = readEnvelope(t, server)
	assert.Equal(t, "join", env.Event)
	assert.JSONEq(t, `"owner02"`, string(env.Data))

	writeRaw(t, server, `{"event":"joined","data":{"room":"owner02"}}`)
	writeRaw(t, server, `{"event":"order:new","data":{"id":"o1","status":"OPEN","source":"Kiosk","createdAt":"2026-03-14T18:00:00Z","totalMoney":500}}`)
	writeRaw(t, server, `not json`)
	writeRaw(t, server, `{"event":"order:printed","data":{"id":"o1"}}`)
	writeRaw(t, server, `{"event":"order:updated","data":{"id":"o1","status":"IN_PROGRESS"}}`)
	writeRaw(t, server, `{"event":"order:cancelled","data":{"id":"o1"}}`)

	ev := nextEvent(t, out)
	assert.Equal(t, push.KindJoined, ev.Kind)
	assert.Equal(t, "owner02", ev.Room)

	ev = nextEvent(t, out)
	require.Equal(t, push.KindOrderNew, ev.Kind)
	assert.Equal(t, "o1", ev.Order.ID)
	assert.Equal(t, int64(500), ev.Order.TotalMoney)

	ev = nextEvent(t, out)
	require.Equal(t, push.KindOrderUpdated, ev.Kind)
	require.NotNil(t, ev.Patch.Status)
	assert.Equal(t, order.StatusInProgress, *ev.Patch.Status)

	ev = nextEvent(t, out)
	require.Equal(t, push.KindOrderCancelled, ev.Kind)
	assert.Equal(t, "o1", ev.OrderID)

	require.NoError(t, server.Close())
	assert.Equal(t, push.KindDisconnected, nextEvent(t, out).Kind)

	second := nextConn(t, conns)
	assert.Equal(t, push.KindConnected, nextEvent(t, out).Kind)
	require.NoError(t, ch.Join(ctx, "owner02"), "a new connection joins again")
	env = readEnvelope(t, second)
	assert.Equal(t, "join", env.Event)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestChannel_JoinWithoutConnection(t *testing.T) {
	ch := NewChannel(WithURL("ws://127.0.0.1:1/ws"))

	assert.ErrorIs(t, ch.Join(context.Background(), "owner01"), push.ErrNotConnected)
	assert.NoError(t, ch.Close())
}
