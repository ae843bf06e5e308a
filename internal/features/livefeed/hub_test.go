package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...Option) (*Hub, string, context.CancelFunc) {
	t.Helper()
	hub := NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// waitSubscribed publishes on topic until the connection sees it, so later publishes are
// known to reach a registered client.
func waitSubscribed(t *testing.T, hub *Hub, conn *websocket.Conn, topic string) {
	t.Helper()
	hub.Publish(topic, "sync")
	for {
		if msg := read(t, conn); msg.Topic == topic {
			return
		}
	}
}

func TestHubFiltersByTopic(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, url+"?topics=tokens")

	hub.Publish("trades", map[string]int{"n": 1})
	hub.Publish("tokens", map[string]int{"n": 2})

	msg := read(t, conn)
	assert.Equal(t, "tokens", msg.Topic)
	assert.JSONEq(t, `{"n":2}`, string(msg.Data))
	assert.NotZero(t, msg.TS)
}

func TestHubBroadcastsInOrderToAllTopicsSubscriber(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, url)
	waitSubscribed(t, hub, conn, "hello")

	hub.Publish("tokens", 1)
	hub.Publish("trades", 2)

	assert.Equal(t, "tokens", read(t, conn).Topic)
	assert.Equal(t, "trades", read(t, conn).Topic)
}

func TestHubReplaysLastFrameToNewSubscribers(t *testing.T) {
	hub, url, _ := startHub(t)
	first := dial(t, url+"?topics=tokens")
	waitSubscribed(t, hub, first, "tokens")

	hub.Publish("tokens", "latest")
	assert.JSONEq(t, `"latest"`, string(read(t, first).Data))

	late := dial(t, url+"?topics=tokens")
	assert.JSONEq(t, `"latest"`, string(read(t, late).Data))
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub, url, cancel := startHub(t)
	conn := dial(t, url)
	waitSubscribed(t, hub, conn, "x")

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestDeliverDropsSlowClient(t *testing.T) {
	hub := NewHub(WithSendBuffer(1))
	c := &client{hub: hub, send: make(chan []byte, 1), topics: parseTopics("")}
	hub.clients[c] = struct{}{}

	hub.deliver(c, []byte("a"))
	assert.Contains(t, hub.clients, c)

	hub.deliver(c, []byte("b"))
	assert.NotContains(t, hub.clients, c)

	<-c.send
	_, open := <-c.send
	assert.False(t, open)
}

func TestReplayStopsOnceClientIsDropped(t *testing.T) {
	hub := NewHub(WithSendBuffer(1))
	hub.last["tokens"] = []byte("t")
	hub.last["trades"] = []byte("x")
	hub.last["alerts"] = []byte("a")
	c := &client{hub: hub, send: make(chan []byte, 1), topics: parseTopics("")}

	require.NotPanics(t, func() { hub.add(c) })
	assert.NotContains(t, hub.clients, c)

	<-c.send
	_, open := <-c.send
	assert.False(t, open)
}

func TestParseTopics(t *testing.T) {
	c := &client{topics: parseTopics(" Tokens, ,trades")}
	assert.True(t, c.wants("tokens"))
	assert.True(t, c.wants("trades"))
	assert.False(t, c.wants("alerts"))
	assert.True(t, (&client{topics: parseTopics("")}).wants("anything"))
}
