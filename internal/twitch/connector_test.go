package twitch

import (
	"testing"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawChatEvent(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := twitchirc.PrivateMessage{
		User:    twitchirc.User{Name: "viewer42", DisplayName: "Viewer42"},
		Message: "Kappa hello",
		Time:    sentAt,
		Emotes:  []*twitchirc.Emote{{ID: "25", Name: "Kappa"}},
	}

	event := toRawChatEvent(m)

	assert.Equal(t, sentAt, event.Timestamp)
	assert.Equal(t, "Viewer42", event.Author)
	assert.Equal(t, "Kappa hello", event.Content)
	require.Len(t, event.NativeEmotes, 1)
	assert.Equal(t, "25", event.NativeEmotes[0].ID)
	assert.Equal(t, "Kappa", event.NativeEmotes[0].Name)
}

func TestToRawChatEvent_FallbackAuthorAndTime(t *testing.T) {
	m := twitchirc.PrivateMessage{
		User:    twitchirc.User{Name: "viewer42"},
		Message: "hi",
	}

	event := toRawChatEvent(m)

	assert.Equal(t, "viewer42", event.Author)
	assert.False(t, event.Timestamp.IsZero())
	assert.Empty(t, event.NativeEmotes)
}

func TestToRawChatEvent_SkipsUnnamedEmotes(t *testing.T) {
	m := twitchirc.PrivateMessage{
		User:    twitchirc.User{Name: "viewer42"},
		Message: "hi",
		Time:    time.Now(),
		Emotes:  []*twitchirc.Emote{nil, {ID: "1", Name: ""}},
	}

	event := toRawChatEvent(m)
	assert.Empty(t, event.NativeEmotes)
}

func TestNoopResolver(t *testing.T) {
	_, err := NoopResolver{}.ResolveUserID(t.Context(), "somechannel")
	assert.Error(t, err)
}
