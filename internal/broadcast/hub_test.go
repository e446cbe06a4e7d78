package broadcast

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections
// and subscribes them to the channel named in the query string.
func testHub(t *testing.T, onFirst func(string) error, onLast func(string)) (*Hub, func(channel string) *ws.Conn) {
	t.Helper()

	hub := NewHub(onFirst, onLast, nil)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		channel := r.URL.Query().Get("channel")
		if err := hub.Subscribe(channel, conn); err != nil {
			return
		}

		// Read loop to detect disconnects
		go func() {
			defer hub.Unsubscribe(channel, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func(channel string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?channel=" + channel
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForSubscriberCount(hub *Hub, channel string, expected int) bool {
	for range 100 {
		if hub.SubscriberCount(channel) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func readEvent(t *testing.T, conn *ws.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.Event
	require.NoError(t, json.Unmarshal(msg, &event))
	return event
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub, dial := testHub(t, nil, nil)

	conn := dial("somechannel")
	require.True(t, waitForSubscriberCount(hub, "somechannel", 1))

	hub.Broadcast("somechannel", domain.StatusEvent("hello"))

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventStatus, event.Type)
	assert.Equal(t, "hello", event.Payload)
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub, dial := testHub(t, nil, nil)

	conn1 := dial("somechannel")
	conn2 := dial("somechannel")
	require.True(t, waitForSubscriberCount(hub, "somechannel", 2))

	hub.Broadcast("somechannel", domain.StatusEvent("to everyone"))

	for _, conn := range []*ws.Conn{conn1, conn2} {
		event := readEvent(t, conn)
		assert.Equal(t, "to everyone", event.Payload)
	}
}

func TestHub_BroadcastIsScopedToChannel(t *testing.T) {
	hub, dial := testHub(t, nil, nil)

	conn1 := dial("channelone")
	conn2 := dial("channeltwo")
	require.True(t, waitForSubscriberCount(hub, "channelone", 1))
	require.True(t, waitForSubscriberCount(hub, "channeltwo", 1))

	hub.Broadcast("channelone", domain.StatusEvent("only one"))

	event := readEvent(t, conn1)
	assert.Equal(t, "only one", event.Payload)

	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn2.ReadMessage()
	assert.Error(t, err, "other channel must not receive the event")
}

func TestHub_OnFirstSubscribeRunsOncePerActivation(t *testing.T) {
	var activations atomic.Int32
	onFirst := func(channel string) error {
		activations.Add(1)
		return nil
	}

	hub, dial := testHub(t, onFirst, nil)

	dial("somechannel")
	dial("somechannel")
	require.True(t, waitForSubscriberCount(hub, "somechannel", 2))

	assert.Equal(t, int32(1), activations.Load())
}

func TestHub_ActivationEventsReachQueuedSubscribers(t *testing.T) {
	var hub *Hub
	started := make(chan struct{})
	release := make(chan struct{})
	onFirst := func(channel string) error {
		close(started)
		<-release
		hub.Broadcast(channel, domain.StatusEvent("Successfully joined chat for "+channel))
		return nil
	}

	h, dial := testHub(t, onFirst, nil)
	hub = h

	conn1 := dial("somechannel")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("activation not started")
	}

	// The second subscriber queues behind the in-flight activation.
	conn2 := dial("somechannel")
	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, conn := range []*ws.Conn{conn1, conn2} {
		event := readEvent(t, conn)
		assert.Equal(t, domain.EventStatus, event.Type)
		assert.Equal(t, "Successfully joined chat for somechannel", event.Payload)
	}
}

func TestHub_TeardownDoesNotBlockOtherChannels(t *testing.T) {
	tearingDown := make(chan struct{})
	release := make(chan struct{})
	onLast := func(channel string) {
		close(tearingDown)
		<-release
	}

	hub, dial := testHub(t, nil, onLast)
	t.Cleanup(func() { close(release) })

	conn1 := dial("channelone")
	require.True(t, waitForSubscriberCount(hub, "channelone", 1))
	conn1.Close()

	select {
	case <-tearingDown:
	case <-time.After(time.Second):
		t.Fatal("teardown not triggered")
	}

	// The hub must keep serving while channelone's teardown is in flight.
	conn2 := dial("channeltwo")
	require.True(t, waitForSubscriberCount(hub, "channeltwo", 1))

	hub.Broadcast("channeltwo", domain.StatusEvent("still serving"))
	event := readEvent(t, conn2)
	assert.Equal(t, "still serving", event.Payload)
}

func TestHub_ActivationFailureDeliversErrorEvent(t *testing.T) {
	onFirst := func(channel string) error {
		return errors.New("twitch authentication failed")
	}

	_, dial := testHub(t, onFirst, nil)

	conn := dial("somechannel")

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventError, event.Type)
	assert.Contains(t, event.Payload, "twitch authentication failed")

	// The hub closes the connection after the error event.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_OnLastUnsubscribe(t *testing.T) {
	releasedCh := make(chan string, 1)
	onLast := func(channel string) {
		releasedCh <- channel
	}

	hub, dial := testHub(t, nil, onLast)

	conn1 := dial("somechannel")
	conn2 := dial("somechannel")
	require.True(t, waitForSubscriberCount(hub, "somechannel", 2))

	conn1.Close()
	require.True(t, waitForSubscriberCount(hub, "somechannel", 1))
	select {
	case <-releasedCh:
		t.Fatal("released while a subscriber remains")
	default:
	}

	conn2.Close()
	select {
	case channel := <-releasedCh:
		assert.Equal(t, "somechannel", channel)
	case <-time.After(time.Second):
		t.Fatal("onLastUnsubscribe not called")
	}
}

func TestHub_ChannelNamesAreNormalized(t *testing.T) {
	hub, dial := testHub(t, nil, nil)

	conn := dial("somechannel")
	require.True(t, waitForSubscriberCount(hub, "somechannel", 1))

	hub.Broadcast("SomeChannel", domain.StatusEvent("case insensitive"))

	event := readEvent(t, conn)
	assert.Equal(t, "case insensitive", event.Payload)
	assert.Equal(t, 1, hub.SubscriberCount("SOMECHANNEL"))
}
