// Package broadcast fans enrichment events out to dashboard subscribers over
// WebSocket, one subscriber group per channel.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/logging"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

const (
	maxSubscribersPerChannel = 50
	maxBufferedEvents        = 256
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdSubscribe struct {
	channel string
	conn    *websocket.Conn
	errCh   chan error
}

func (cmdSubscribe) hubCmd() {}

type cmdUnsubscribe struct {
	channel string
	conn    *websocket.Conn
}

func (cmdUnsubscribe) hubCmd() {}

type cmdBroadcast struct {
	channel string
	kind    string
	data    []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdSubscriberCount struct {
	channel string
	replyCh chan int
}

func (cmdSubscriberCount) hubCmd() {}

type cmdActivationResult struct {
	channel string
	err     error
}

func (cmdActivationResult) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub routes events to the subscribers of each channel. All subscriber state
// is owned by the run goroutine; the public API only exchanges commands with
// it, so no locks are needed.
//
// The first subscriber of a channel triggers onFirstSubscribe (which starts
// the ingestion session); further subscribers arriving while that callback
// runs are queued and activated together. Events broadcast during activation
// are held and delivered to the queued subscribers once it succeeds, so the
// session's own startup events reach the subscribers that caused the start.
// When the last subscriber leaves, onLastUnsubscribe tears the session down.
type Hub struct {
	cmdCh             chan hubCmd
	clock             clockwork.Clock
	subscribers       map[string]map[*websocket.Conn]*subscriberWriter
	pending           map[string][]cmdSubscribe
	buffered          map[string][]cmdBroadcast
	onFirstSubscribe  func(channel string) error
	onLastUnsubscribe func(channel string)
}

// NewHub creates a hub and starts its run goroutine. Either callback may be
// nil. clock may be nil, in which case the real clock is used.
func NewHub(onFirstSubscribe func(string) error, onLastUnsubscribe func(string), clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	hub := &Hub{
		cmdCh:             make(chan hubCmd, 256),
		clock:             clock,
		subscribers:       make(map[string]map[*websocket.Conn]*subscriberWriter),
		pending:           make(map[string][]cmdSubscribe),
		buffered:          make(map[string][]cmdBroadcast),
		onFirstSubscribe:  onFirstSubscribe,
		onLastUnsubscribe: onLastUnsubscribe,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdSubscribe:
			h.handleSubscribe(c)
		case cmdUnsubscribe:
			h.handleUnsubscribe(c.channel, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdSubscriberCount:
			c.replyCh <- len(h.subscribers[c.channel])
		case cmdActivationResult:
			h.handleActivationResult(c)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleSubscribe(c cmdSubscribe) {
	// Channel already active, add the subscriber directly.
	if subs, exists := h.subscribers[c.channel]; exists {
		if len(subs) >= maxSubscribersPerChannel {
			slog.Warn("Rejecting subscriber, channel full", "channel", c.channel, "limit", maxSubscribersPerChannel)
			_ = c.conn.Close()
			c.errCh <- fmt.Errorf("max subscribers per channel (%d) reached", maxSubscribersPerChannel)
			return
		}
		h.addSubscriber(c.channel, subs, c.conn)
		c.errCh <- nil
		return
	}

	// Activation already in flight, queue behind it.
	if _, exists := h.pending[c.channel]; exists {
		h.pending[c.channel] = append(h.pending[c.channel], c)
		return
	}

	// First subscriber of this channel.
	if h.onFirstSubscribe != nil {
		h.pending[c.channel] = []cmdSubscribe{c}
		channel := c.channel
		go func() {
			err := h.onFirstSubscribe(channel)
			h.cmdCh <- cmdActivationResult{channel: channel, err: err}
		}()
		return
	}

	subs := make(map[*websocket.Conn]*subscriberWriter)
	h.subscribers[c.channel] = subs
	h.addSubscriber(c.channel, subs, c.conn)
	c.errCh <- nil
}

func (h *Hub) addSubscriber(channel string, subs map[*websocket.Conn]*subscriberWriter, conn *websocket.Conn) {
	sw := newSubscriberWriter(conn, h.clock)
	subs[conn] = sw
	metrics.ConnectedSubscribers.Inc()
	logging.WithSubscriber(sw.id.String()).Info("Subscriber registered", "channel", channel, "total", len(subs))
}

func (h *Hub) handleActivationResult(c cmdActivationResult) {
	pending, exists := h.pending[c.channel]
	if !exists {
		return
	}
	delete(h.pending, c.channel)

	if c.err != nil {
		slog.Error("Failed to activate channel", "channel", c.channel, "error", c.err)
		delete(h.buffered, c.channel)
		// Queued subscribers get one error event so the dashboard can show
		// why the stream never started.
		data, merr := json.Marshal(domain.ErrorEvent(fmt.Sprintf("Failed to start analysis: %v", c.err)))
		for _, p := range pending {
			if merr == nil {
				_ = p.conn.SetWriteDeadline(h.clock.Now().Add(writeDeadline))
				_ = p.conn.WriteMessage(websocket.TextMessage, data)
			}
			_ = p.conn.Close()
			p.errCh <- c.err
		}
		return
	}

	subs := make(map[*websocket.Conn]*subscriberWriter)
	h.subscribers[c.channel] = subs
	for _, p := range pending {
		h.addSubscriber(c.channel, subs, p.conn)
		p.errCh <- nil
	}

	// Replay the events the session emitted while its subscribers were queued.
	buffered := h.buffered[c.channel]
	delete(h.buffered, c.channel)
	for _, b := range buffered {
		h.handleBroadcast(b)
	}
}

func (h *Hub) handleUnsubscribe(channel string, conn *websocket.Conn) {
	subs, exists := h.subscribers[channel]
	if !exists {
		return
	}

	sw, exists := subs[conn]
	if !exists {
		return
	}

	sw.stop()
	delete(subs, conn)
	metrics.ConnectedSubscribers.Dec()

	if len(subs) == 0 {
		delete(h.subscribers, channel)
		if h.onLastUnsubscribe != nil {
			// Teardown waits on the chat disconnect; running it here would
			// stall every other channel and block the commands the dying
			// session still sends.
			go h.onLastUnsubscribe(channel)
		}
		slog.Info("Last subscriber left", "channel", channel)
	} else {
		logging.WithSubscriber(sw.id.String()).Info("Subscriber unregistered", "channel", channel, "remaining", len(subs))
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	subs, exists := h.subscribers[c.channel]
	if !exists {
		// The activation result always trails broadcasts emitted during the
		// session start, so hold them for the queued subscribers.
		if _, starting := h.pending[c.channel]; starting && len(h.buffered[c.channel]) < maxBufferedEvents {
			h.buffered[c.channel] = append(h.buffered[c.channel], c)
		}
		return
	}
	metrics.EventsBroadcast.WithLabelValues(c.kind).Inc()

	var slow []*websocket.Conn
	for conn, sw := range subs {
		select {
		case sw.sendChannel <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		logging.WithSubscriber(subs[conn].id.String()).Warn("Evicting slow subscriber", "channel", c.channel)
		metrics.SlowSubscribersEvicted.Inc()
		h.handleUnsubscribe(c.channel, conn)
	}
}

func (h *Hub) handleStop() {
	for channel, subs := range h.subscribers {
		for _, sw := range subs {
			sw.stopGraceful("server shutting down")
			metrics.ConnectedSubscribers.Dec()
		}
		delete(h.subscribers, channel)
	}
	for channel, pending := range h.pending {
		for _, p := range pending {
			_ = p.conn.Close()
			p.errCh <- fmt.Errorf("hub stopped")
		}
		delete(h.pending, channel)
	}
	clear(h.buffered)
}

// --- Public API ---

// Subscribe registers a connection as a subscriber of a channel. It blocks
// until the channel is active (starting the ingestion session if this is the
// first subscriber) and returns the activation error, if any. On error the
// connection has already been closed.
func (h *Hub) Subscribe(channel string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdSubscribe{channel: domain.NormalizeChannel(channel), conn: conn, errCh: errCh}
	return <-errCh
}

// Unsubscribe removes a connection from a channel's subscriber group.
func (h *Hub) Unsubscribe(channel string, conn *websocket.Conn) {
	h.cmdCh <- cmdUnsubscribe{channel: domain.NormalizeChannel(channel), conn: conn}
}

// Broadcast fans an event out to every subscriber of a channel. Marshalling
// happens once per event, not per subscriber.
func (h *Hub) Broadcast(channel string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "channel", channel, "kind", event.Type, "error", err)
		return
	}
	h.cmdCh <- cmdBroadcast{channel: domain.NormalizeChannel(channel), kind: event.Type, data: data}
}

// SubscriberCount reports the number of subscribers of a channel.
func (h *Hub) SubscriberCount(channel string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdSubscriberCount{channel: domain.NormalizeChannel(channel), replyCh: replyCh}
	return <-replyCh
}

// Stop disconnects every subscriber and terminates the run goroutine.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
