package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/logging"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// subscriberWriter owns all writes to one subscriber connection. Events are
// queued on sendChannel and written by a single goroutine, which also drives
// the ping/pong keepalive.
type subscriberWriter struct {
	id          uuid.UUID
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newSubscriberWriter(connection *websocket.Conn, clock clockwork.Clock) *subscriberWriter {
	sw := &subscriberWriter{
		id:          uuid.New(),
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	sw.configurePongHandler()
	sw.wg.Add(1)
	go sw.run()
	return sw
}

func (sw *subscriberWriter) run() {
	ticker := sw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer sw.wg.Done()

	for {
		select {
		case msg, ok := <-sw.sendChannel:
			if !ok {
				return
			}
			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			sw.updateWriteDeadline()
			if err := sw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				logging.WithSubscriber(sw.id.String()).Debug("Subscriber ping failed")
				return
			}
		case <-sw.doneChannel:
			return
		}
	}
}

func (sw *subscriberWriter) stop() {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)
		_ = sw.connection.Close()
	})
	sw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing the connection.
func (sw *subscriberWriter) stopGraceful(reason string) {
	sw.stopOnce.Do(func() {
		close(sw.doneChannel)

		// The run goroutine must exit before we write the close frame, the
		// connection does not tolerate concurrent writers.
		sw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		sw.updateWriteDeadline()
		_ = sw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = sw.connection.Close()
	})
}

func (sw *subscriberWriter) configurePongHandler() {
	sw.updateReadDeadline()
	sw.connection.SetPongHandler(func(string) error {
		sw.updateReadDeadline()
		return nil
	})
}

func (sw *subscriberWriter) updateWriteDeadline() {
	_ = sw.connection.SetWriteDeadline(sw.clock.Now().Add(writeDeadline))
}

func (sw *subscriberWriter) updateReadDeadline() {
	_ = sw.connection.SetReadDeadline(sw.clock.Now().Add(pongDeadline))
}
