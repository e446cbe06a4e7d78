package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/enrich"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/logging"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// DefaultStartTimeout bounds how long a session may take to join chat.
const DefaultStartTimeout = 15 * time.Second

// Supervisor owns at most one session per channel. Concurrent Acquire calls
// for the same channel collapse into a single session start; Release tears
// the session down once the last subscriber is gone.
type Supervisor struct {
	factory      domain.ConnectorFactory
	publisher    domain.Publisher
	pipeline     *enrich.Pipeline
	provider     EmoteProvider
	startTimeout time.Duration
	anonymous    bool

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSupervisor creates a supervisor. startTimeout <= 0 selects the default.
func NewSupervisor(factory domain.ConnectorFactory, publisher domain.Publisher, pipeline *enrich.Pipeline, provider EmoteProvider, startTimeout time.Duration) *Supervisor {
	if startTimeout <= 0 {
		startTimeout = DefaultStartTimeout
	}
	return &Supervisor{
		factory:      factory,
		publisher:    publisher,
		pipeline:     pipeline,
		provider:     provider,
		startTimeout: startTimeout,
		sessions:     make(map[string]*Session),
	}
}

// SetAnonymous marks the chat connection as anonymous. Sessions then warn
// their subscribers that bot functionality is limited, as read-only logins
// cannot send or moderate.
func (sv *Supervisor) SetAnonymous(anonymous bool) {
	sv.anonymous = anonymous
}

// Acquire ensures a session is running for the channel, starting one if
// needed. Callers racing on the same channel share one start attempt and one
// result.
func (sv *Supervisor) Acquire(ctx context.Context, channel string) error {
	channel = domain.NormalizeChannel(channel)

	_, err, _ := sv.group.Do(channel, func() (any, error) {
		sv.mu.Lock()
		if existing, ok := sv.sessions[channel]; ok && existing.State() != StateStopped {
			sv.mu.Unlock()
			return nil, nil
		}
		sv.mu.Unlock()

		sess := newSession(channel, sv.publisher, sv.pipeline, sv.provider, sv.remove)
		if sv.anonymous {
			sv.publisher.Broadcast(channel, domain.WarningEvent("Connecting to Twitch anonymously. Bot functionality might be limited."))
		}
		if err := sess.start(ctx, sv.factory, sv.startTimeout); err != nil {
			metrics.SessionStartsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		sv.mu.Lock()
		sv.sessions[channel] = sess
		// The connector can die between the join signal and this insert, in
		// which case the monitor's removal ran against an empty registry.
		if sess.State() == StateStopped {
			delete(sv.sessions, channel)
		}
		count := len(sv.sessions)
		sv.mu.Unlock()

		metrics.SessionStartsTotal.WithLabelValues("success").Inc()
		metrics.ActiveSessions.Set(float64(count))
		logging.WithChannel(channel).Info("Session acquired", "active_sessions", count)
		return nil, nil
	})
	return err
}

// Release stops the channel's session. Releasing an unknown channel is a
// no-op.
func (sv *Supervisor) Release(channel string) {
	channel = domain.NormalizeChannel(channel)

	sv.mu.Lock()
	sess, ok := sv.sessions[channel]
	if ok {
		delete(sv.sessions, channel)
	}
	count := len(sv.sessions)
	sv.mu.Unlock()

	if !ok {
		return
	}

	sess.stop()
	metrics.ActiveSessions.Set(float64(count))
	logging.WithChannel(channel).Info("Session released", "active_sessions", count)
}

// remove drops a session that exited on its own, so a later Acquire can
// start a fresh one. The dead session needs no stop, its goroutines are gone.
func (sv *Supervisor) remove(channel string) {
	sv.mu.Lock()
	if sess, ok := sv.sessions[channel]; ok && sess.State() == StateStopped {
		delete(sv.sessions, channel)
	}
	count := len(sv.sessions)
	sv.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
}

// ActiveChannels returns the channels with a running session, sorted.
func (sv *Supervisor) ActiveChannels() []string {
	sv.mu.Lock()
	channels := make([]string, 0, len(sv.sessions))
	for channel := range sv.sessions {
		channels = append(channels, channel)
	}
	sv.mu.Unlock()

	sort.Strings(channels)
	return channels
}

// Count returns the number of running sessions.
func (sv *Supervisor) Count() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.sessions)
}

// ShutdownAll stops every session concurrently and waits for them, bounded
// by ctx.
func (sv *Supervisor) ShutdownAll(ctx context.Context) error {
	sv.mu.Lock()
	sessions := make([]*Session, 0, len(sv.sessions))
	for channel, sess := range sv.sessions {
		sessions = append(sessions, sess)
		delete(sv.sessions, channel)
	}
	sv.mu.Unlock()

	metrics.ActiveSessions.Set(0)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, sess := range sessions {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.stop()
			}(sess)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All sessions stopped", "count", len(sessions))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
