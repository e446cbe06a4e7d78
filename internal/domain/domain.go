package domain

import (
	"context"
	"strings"
	"time"
)

// --- Channel identity ---

// NormalizeChannel canonicalizes a channel name. Every map lookup across the
// supervisor, hub, and emote directory uses this form.
func NormalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimSpace(channel))
}

// --- Model types ---

// NativeEmote is an emote reported by the platform itself in message tags.
type NativeEmote struct {
	ID   string
	Name string
}

// RawChatEvent is a single chat line as delivered by the ingestion connector.
type RawChatEvent struct {
	Timestamp    time.Time
	Author       string
	Content      string
	NativeEmotes []NativeEmote
}

// EmoteMapping maps an emote name to its smallest-resolution image URL,
// as returned by one external emote source.
type EmoteMapping map[string]string

// EmoteSnapshot holds the three mappings a session enriches against.
// ChannelA and ChannelB are owned by the session; Global is the shared
// process-wide copy handed out by the emote directory.
type EmoteSnapshot struct {
	ChannelA EmoteMapping
	ChannelB EmoteMapping
	Global   EmoteMapping
}

// EmoteEntry is one detected emote in an enriched message.
type EmoteEntry struct {
	Name           string   `json:"name"`
	URL            string   `json:"url"`
	Source         string   `json:"type"`
	SentimentScore *float64 `json:"sentiment_score"`
}

// EnrichedMessage is the immutable output of the enrichment pipeline.
type EnrichedMessage struct {
	Timestamp      time.Time          `json:"timestamp"`
	Author         string             `json:"author"`
	Content        string             `json:"content"`
	SentimentScore *float64           `json:"sentiment_score"`
	SentimentWords map[string]float64 `json:"sentiment_words"`
	Keywords       []string           `json:"keywords"`
	DetectedEmotes []EmoteEntry       `json:"detected_emotes"`
}

// --- Dashboard events ---

// Event kinds delivered to dashboard subscribers.
const (
	EventStatus      = "status"
	EventWarning     = "warning"
	EventError       = "error"
	EventChatMessage = "chat_message"
)

// Event is the JSON envelope pushed to every subscriber of a channel.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusEvent builds a status event with a plain-text payload.
func StatusEvent(message string) Event {
	return Event{Type: EventStatus, Payload: message}
}

// WarningEvent builds a warning event with a plain-text payload.
func WarningEvent(message string) Event {
	return Event{Type: EventWarning, Payload: message}
}

// ErrorEvent builds an error event with a plain-text payload.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Payload: message}
}

// ChatEvent wraps an enriched message for delivery.
func ChatEvent(msg EnrichedMessage) Event {
	return Event{Type: EventChatMessage, Payload: msg}
}

// --- Collaborator interfaces ---

// ConnectorHandler receives ingestion connector callbacks. Joined fires once
// when the connector has authenticated and joined the channel; Message fires
// for every chat line afterwards, in arrival order.
type ConnectorHandler interface {
	Joined()
	Message(event RawChatEvent)
}

// ChatConnector streams raw chat events for a single channel.
// Run blocks until the connection fails or ctx is cancelled; an authentication
// rejection surfaces as the returned error.
type ChatConnector interface {
	Run(ctx context.Context) error
}

// ConnectorFactory builds a connector for a channel. Sessions own exactly one
// connector each; the factory indirection keeps the supervisor testable.
type ConnectorFactory interface {
	NewConnector(channel string, handler ConnectorHandler) ChatConnector
}

// IdentityResolver resolves a channel login name to the platform's numeric
// user id, needed by id-keyed emote sources.
type IdentityResolver interface {
	ResolveUserID(ctx context.Context, login string) (string, error)
}

// ChannelEmoteSource fetches the emote mapping of one channel-scoped source.
// A "channel unknown to this source" response is an empty mapping, not an error.
type ChannelEmoteSource interface {
	FetchChannel(ctx context.Context, channelOrID string) (EmoteMapping, error)
}

// GlobalEmoteSource fetches a source's global emote mapping.
type GlobalEmoteSource interface {
	FetchGlobal(ctx context.Context) (EmoteMapping, error)
}

// SentimentScorer computes a compound sentiment score and per-token scores
// for a chat line. Compound is nil when scoring fails; the per-token map only
// carries non-neutral scores.
type SentimentScorer interface {
	Score(text string) (compound *float64, tokenScores map[string]float64)
}

// KeywordExtractor returns up to max keywords for a chat line, most
// significant first.
type KeywordExtractor interface {
	Keywords(text string, max int) []string
}

// Publisher fans an event out to every subscriber of a channel.
type Publisher interface {
	Broadcast(channel string, event Event)
}
