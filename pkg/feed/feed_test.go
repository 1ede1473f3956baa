package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/records"
)

func setupTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(slog.Default(), 5*time.Second)
	hub.Start(context.Background())
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		hub.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(server.Close)

	return hub, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// subscribeTo subscribes conn to channel and consumes the confirmation.
func subscribeTo(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: channel})
	msg := readJSON(t, conn)
	require.Equal(t, "subscription.confirmed", msg["type"])
	require.Equal(t, channel, msg["channel"])
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectionEstablished(t *testing.T) {
	_, server := setupTestHub(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
}

func TestSubscribeAndBroadcast(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	subscribeTo(t, conn, ChannelEvents)
	waitFor(t, "subscription", func() bool { return hub.subscriberCount(ChannelEvents) == 1 })

	hub.Broadcast(ChannelEvents, []byte(`{"type":"event.raised","event":"ev_test"}`))

	msg := readJSON(t, conn)
	assert.Equal(t, "event.raised", msg["type"])
	assert.Equal(t, "ev_test", msg["event"])
}

func TestUnknownChannelRejected(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: "session:123"})

	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "session:123", msg["channel"])
	assert.Equal(t, 0, hub.subscriberCount("session:123"))
}

func TestPublishFansOutPerChannel(t *testing.T) {
	hub, server := setupTestHub(t)

	evConn := connectWS(t, server)
	readJSON(t, evConn)
	subscribeTo(t, evConn, ChannelEvents)

	mudConn := connectWS(t, server)
	readJSON(t, mudConn)
	subscribeTo(t, mudConn, ChannelMud)

	waitFor(t, "subscriptions", func() bool {
		return hub.subscriberCount(ChannelEvents) == 1 && hub.subscriberCount(ChannelMud) == 1
	})

	hub.Publish(ChannelEvents, EventRaisedPayload{Type: TypeEventRaised, Event: "ev_one", Actor: "tester"})
	hub.Publish(ChannelMud, LinePayload{Type: TypeLine, Origin: "client", Preview: "look"})

	evMsg := readJSON(t, evConn)
	assert.Equal(t, "event.raised", evMsg["type"])
	assert.Equal(t, "ev_one", evMsg["event"])
	assert.Equal(t, "tester", evMsg["actor"])

	// The mud subscriber sees only its own channel, so the first
	// message it reads is the line, not the event.
	mudMsg := readJSON(t, mudConn)
	assert.Equal(t, "line", mudMsg["type"])
	assert.Equal(t, "look", mudMsg["preview"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	subscribeTo(t, conn, ChannelSystem)
	waitFor(t, "subscription", func() bool { return hub.subscriberCount(ChannelSystem) == 1 })

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: ChannelSystem})
	waitFor(t, "unsubscribe", func() bool { return hub.subscriberCount(ChannelSystem) == 0 })

	hub.Publish(ChannelSystem, SystemNoticePayload{Type: TypeSystemNotice, Kind: "plugin.loaded"})

	// A pong is the next message; the notice was not delivered.
	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestPing(t *testing.T) {
	_, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestPublishNeverBlocks(t *testing.T) {
	// No pump: the queue fills and the overflow is dropped.
	hub := NewHub(slog.Default(), time.Second)

	for i := 0; i < publishBuffer+10; i++ {
		hub.Publish(ChannelEvents, EventRaisedPayload{Type: TypeEventRaised, Event: "ev_flood"})
	}

	assert.Equal(t, uint64(10), hub.Dropped())
	assert.False(t, hub.Publish(ChannelEvents, EventRaisedPayload{Type: TypeEventRaised}))
}

func TestDisconnectCleansUp(t *testing.T) {
	hub, server := setupTestHub(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	subscribeTo(t, conn, ChannelClient)
	waitFor(t, "subscription", func() bool { return hub.subscriberCount(ChannelClient) == 1 })

	conn.Close(websocket.StatusNormalClosure, "")

	waitFor(t, "cleanup", func() bool {
		return hub.ActiveConnections() == 0 && hub.subscriberCount(ChannelClient) == 0
	})
}

// testFormat is a minimal pipeline format source.
type testFormat struct{}

func (testFormat) FormatSpec() records.FormatSpec {
	return records.FormatSpec{Preamble: "#BP", PreambleColor: "@C", ErrorColor: "@R"}
}
func (testFormat) Separator() string { return "|" }

// fakeSink accepts mud deliveries.
type fakeSink struct{}

func (fakeSink) Connected() bool     { return true }
func (fakeSink) Deliver([]byte) bool { return true }

func TestTapPublishesRaisesLinesAndNotices(t *testing.T) {
	hub, server := setupTestHub(t)

	b := bus.New(slog.Default())
	p := pipeline.New(slog.Default(), b, testFormat{})
	p.SetMudSink(fakeSink{})

	tap := NewTap(slog.Default(), hub, b)
	tap.Install()

	evConn := connectWS(t, server)
	readJSON(t, evConn)
	subscribeTo(t, evConn, ChannelEvents)

	mudConn := connectWS(t, server)
	readJSON(t, mudConn)
	subscribeTo(t, mudConn, ChannelMud)

	sysConn := connectWS(t, server)
	readJSON(t, sysConn)
	subscribeTo(t, sysConn, ChannelSystem)

	waitFor(t, "subscriptions", func() bool {
		return hub.subscriberCount(ChannelEvents) == 1 &&
			hub.subscriberCount(ChannelMud) == 1 &&
			hub.subscriberCount(ChannelSystem) == 1
	})

	_, err := b.Raise("ev_custom", map[string]any{"n": 1}, "tester")
	require.NoError(t, err)

	evMsg := readJSON(t, evConn)
	assert.Equal(t, "event.raised", evMsg["type"])
	assert.Equal(t, "ev_custom", evMsg["event"])
	assert.Equal(t, "tester", evMsg["actor"])

	// Line traffic goes to the mud channel, not the events channel.
	_, err = p.ProcessToMud("look", "client:c1")
	require.NoError(t, err)

	mudMsg := readJSON(t, mudConn)
	assert.Equal(t, "line", mudMsg["type"])
	assert.Equal(t, "client", mudMsg["origin"])
	assert.Equal(t, "look", mudMsg["preview"])

	// Lifecycle raises land on the system channel as notices.
	_, err = b.Raise(clients.EventConnected, map[string]any{"client_uuid": "c1"}, "core")
	require.NoError(t, err)

	sysMsg := readJSON(t, sysConn)
	assert.Equal(t, "system.notice", sysMsg["type"])
	assert.Equal(t, "client.connected", sysMsg["kind"])
	assert.Equal(t, "c1", sysMsg["client_uuid"])

	// The pipeline raises were filtered from the events channel, so the
	// subscriber sees the lifecycle raise next, then this one.
	_, err = b.Raise("ev_after", nil, "tester")
	require.NoError(t, err)

	evMsg = readJSON(t, evConn)
	assert.Equal(t, clients.EventConnected, evMsg["event"])
	evMsg = readJSON(t, evConn)
	assert.Equal(t, "ev_after", evMsg["event"])
}
