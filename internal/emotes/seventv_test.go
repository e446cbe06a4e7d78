package emotes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sevenTVEmoteSetBody = `{
	"emote_set": {
		"emotes": [
			{
				"name": "OMEGALUL",
				"data": {"host": {"url": "//cdn.7tv.app/emote/abc", "files": [
					{"name": "1x.avif"}, {"name": "1x.webp"}, {"name": "2x.webp"}
				]}}
			},
			{
				"name": "NoWebp",
				"data": {"host": {"url": "//cdn.7tv.app/emote/def", "files": [{"name": "1x.avif"}]}}
			}
		]
	}
}`

func newTestSevenTVClient(t *testing.T, handler http.HandlerFunc) *SevenTVClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewSevenTVClient(server.Client())
	client.userBaseURL = server.URL + "/users/"
	client.globalURL = server.URL + "/global"
	return client
}

func TestSevenTVClient_FetchChannel(t *testing.T) {
	client := newTestSevenTVClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/123456", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sevenTVEmoteSetBody))
	})

	mapping, err := client.FetchChannel(t.Context(), "123456")
	require.NoError(t, err)

	assert.Equal(t, "//cdn.7tv.app/emote/abc/1x.webp", mapping["OMEGALUL"])
	assert.NotContains(t, mapping, "NoWebp")
}

func TestSevenTVClient_EmptyUserIDSkipsFetch(t *testing.T) {
	client := newTestSevenTVClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	mapping, err := client.FetchChannel(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestSevenTVClient_UnknownUserIsEmpty(t *testing.T) {
	client := newTestSevenTVClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mapping, err := client.FetchChannel(t.Context(), "999")
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestSevenTVClient_FetchGlobal(t *testing.T) {
	client := newTestSevenTVClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/global", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"emotes": [
				{"name": "modCheck", "data": {"host": {"url": "//cdn.7tv.app/emote/ghi", "files": [{"name": "1x.webp"}]}}}
			]
		}`))
	})

	mapping, err := client.FetchGlobal(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "//cdn.7tv.app/emote/ghi/1x.webp", mapping["modCheck"])
}

func TestSevenTVClient_GlobalServerErrorFails(t *testing.T) {
	client := newTestSevenTVClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchGlobal(t.Context())
	assert.Error(t, err)
}
