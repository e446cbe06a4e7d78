// Package twitch adapts the Twitch IRC and Helix APIs to the domain
// interfaces used by chat sessions.
package twitch

import (
	"context"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
)

// ConnectorConfig carries the IRC credentials. An empty AccessToken selects
// anonymous (read-only) login, which Twitch permits for any justinfan nick.
type ConnectorConfig struct {
	Nickname    string
	AccessToken string
}

// Factory builds one IRC connector per session.
type Factory struct {
	cfg ConnectorConfig
}

// NewFactory creates a connector factory for the given credentials.
func NewFactory(cfg ConnectorConfig) *Factory {
	if cfg.Nickname == "" {
		cfg.Nickname = "justinfan123"
	}
	return &Factory{cfg: cfg}
}

// NewConnector builds a connector joined to a single channel. Handler
// callbacks fire on the IRC client's read goroutine.
func (f *Factory) NewConnector(channel string, handler domain.ConnectorHandler) domain.ChatConnector {
	channel = domain.NormalizeChannel(channel)

	var client *twitchirc.Client
	if f.cfg.AccessToken == "" {
		client = twitchirc.NewAnonymousClient()
	} else {
		client = twitchirc.NewClient(f.cfg.Nickname, "oauth:"+f.cfg.AccessToken)
	}

	c := &Connector{client: client, channel: channel}

	client.OnConnect(func() {
		handler.Joined()
	})

	client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		handler.Message(toRawChatEvent(m))
	})

	client.Join(channel)
	return c
}

// Connector wraps a go-twitch-irc client for one channel.
type Connector struct {
	client  *twitchirc.Client
	channel string
}

// Run connects the client and blocks until the connection fails or ctx is
// cancelled. An authentication rejection surfaces as the returned error.
func (c *Connector) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.client.Connect()
	}()

	select {
	case <-ctx.Done():
		c.client.Disconnect()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func toRawChatEvent(m twitchirc.PrivateMessage) domain.RawChatEvent {
	sentAt := m.Time
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	var natives []domain.NativeEmote
	for _, e := range m.Emotes {
		if e == nil || e.Name == "" {
			continue
		}
		natives = append(natives, domain.NativeEmote{ID: e.ID, Name: e.Name})
	}

	author := m.User.DisplayName
	if author == "" {
		author = m.User.Name
	}

	return domain.RawChatEvent{
		Timestamp:    sentAt,
		Author:       author,
		Content:      m.Message,
		NativeEmotes: natives,
	}
}
