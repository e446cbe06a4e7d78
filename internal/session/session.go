// Package session runs one chat ingestion session per analyzed channel and
// supervises their lifecycle.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/emotes"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/enrich"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/logging"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// State is the lifecycle phase of a session.
type State int32

const (
	StateStarting State = iota
	StateActive
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EmoteProvider hands out the emote mappings a session enriches against.
type EmoteProvider interface {
	Global(ctx context.Context) (domain.EmoteMapping, error)
	Channel(ctx context.Context, channel string) emotes.ChannelEmotes
}

// Session owns one chat connector and the enrichment of its message stream.
// Connector callbacks arrive on the connector's read goroutine; the snapshot
// mutex is the only state shared with the emote loading goroutine.
type Session struct {
	channel   string
	publisher domain.Publisher
	pipeline  *enrich.Pipeline
	provider  EmoteProvider
	onExit    func(channel string)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	joinedOnce sync.Once
	joinedCh   chan struct{}
	runErrCh   chan error

	mu       sync.RWMutex
	state    State
	snapshot domain.EmoteSnapshot
}

func newSession(channel string, publisher domain.Publisher, pipeline *enrich.Pipeline, provider EmoteProvider, onExit func(string)) *Session {
	return &Session{
		channel:   channel,
		publisher: publisher,
		pipeline:  pipeline,
		provider:  provider,
		onExit:    onExit,
		joinedCh:  make(chan struct{}),
		runErrCh:  make(chan error, 1),
	}
}

// Joined implements domain.ConnectorHandler.
func (s *Session) Joined() {
	s.joinedOnce.Do(func() { close(s.joinedCh) })
}

// Message implements domain.ConnectorHandler. Each line is enriched against
// the current emote snapshot and fanned out; a line the pipeline cannot
// process is dropped without disturbing the stream.
func (s *Session) Message(event domain.RawChatEvent) {
	if s.State() != StateActive {
		return
	}

	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	msg, dropped := s.pipeline.Enrich(event, snapshot)
	if dropped {
		return
	}
	s.publisher.Broadcast(s.channel, domain.ChatEvent(msg))
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// start connects the session and blocks until the channel join succeeds, the
// connector fails, the timeout elapses, or ctx is cancelled. The session
// outlives ctx once started; its own lifetime is bound to Stop.
func (s *Session) start(ctx context.Context, factory domain.ConnectorFactory, startTimeout time.Duration) error {
	sessionCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	connector := factory.NewConnector(s.channel, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runErrCh <- connector.Run(sessionCtx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loadEmotes(sessionCtx)
	}()

	timer := time.NewTimer(startTimeout)
	defer timer.Stop()

	select {
	case <-s.joinedCh:
		s.setState(StateActive)
		s.publisher.Broadcast(s.channel, domain.StatusEvent(fmt.Sprintf("Successfully joined chat for %s", s.channel)))
		logging.WithChannel(s.channel).Info("Session active")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.monitor(sessionCtx)
		}()
		return nil

	case err := <-s.runErrCh:
		cancel()
		s.setState(StateStopped)
		return fmt.Errorf("connector failed before join: %w", err)

	case <-timer.C:
		cancel()
		s.setState(StateStopped)
		return fmt.Errorf("timed out joining chat for %s after %s", s.channel, startTimeout)

	case <-ctx.Done():
		cancel()
		s.setState(StateStopped)
		return ctx.Err()
	}
}

// monitor waits for the connector to exit after activation. A failure that is
// not an ordered shutdown is unrecoverable for this session.
func (s *Session) monitor(ctx context.Context) {
	err := <-s.runErrCh
	if ctx.Err() != nil {
		return
	}

	logging.WithChannel(s.channel).Error("Connector failed on active session", "error", err)
	metrics.SessionConnectorErrors.Inc()
	s.publisher.Broadcast(s.channel, domain.ErrorEvent(fmt.Sprintf("Chat connection lost: %v", err)))
	s.cancel()
	s.setState(StateStopped)
	if s.onExit != nil {
		s.onExit(s.channel)
	}
}

// loadEmotes fetches the emote mappings concurrently with the chat join.
// Messages enriched before it finishes simply see fewer emotes.
func (s *Session) loadEmotes(ctx context.Context) {
	global, err := s.provider.Global(ctx)
	if err != nil {
		logging.WithChannel(s.channel).Warn("Global emote fetch failed", "error", err)
		global = domain.EmoteMapping{}
	}

	channelEmotes := s.provider.Channel(ctx, s.channel)

	s.mu.Lock()
	s.snapshot = domain.EmoteSnapshot{
		ChannelA: channelEmotes.SourceA,
		ChannelB: channelEmotes.SourceB,
		Global:   global,
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	for _, warning := range channelEmotes.Warnings {
		s.publisher.Broadcast(s.channel, domain.WarningEvent(warning))
	}
	if err != nil {
		s.publisher.Broadcast(s.channel, domain.ErrorEvent("Failed to load global emote data."))
		return
	}
	s.publisher.Broadcast(s.channel, domain.StatusEvent("FFZ/7TV emote data loaded."))
}

// stop cancels the connector and waits for every session goroutine to exit.
// Idempotent: stopping a stopped session is a no-op.
func (s *Session) stop() {
	s.mu.Lock()
	if s.state == StateStopping || s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.setState(StateStopped)
	logging.WithChannel(s.channel).Info("Session stopped")
}
