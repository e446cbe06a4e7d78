package emotes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFFZClient(t *testing.T, handler http.HandlerFunc) *FFZClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewFFZClient(server.Client())
	client.baseURL = server.URL + "/"
	return client
}

func TestFFZClient_FetchChannel(t *testing.T) {
	client := newTestFFZClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/somechannel", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"sets": {
				"12345": {
					"emoticons": [
						{"name": "CatJAM", "urls": {"1": "//cdn.frankerfacez.com/emote/1/1", "2": "//cdn.frankerfacez.com/emote/1/2"}},
						{"name": "monkaS", "urls": {"1": "https://cdn.frankerfacez.com/emote/2/1"}},
						{"name": "NoSmallRendition", "urls": {"4": "//cdn.frankerfacez.com/emote/3/4"}}
					]
				}
			}
		}`))
	})

	mapping, err := client.FetchChannel(t.Context(), "SomeChannel")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.frankerfacez.com/emote/1/1", mapping["CatJAM"])
	assert.Equal(t, "https://cdn.frankerfacez.com/emote/2/1", mapping["monkaS"])
	assert.NotContains(t, mapping, "NoSmallRendition")
}

func TestFFZClient_UnknownChannelIsEmpty(t *testing.T) {
	client := newTestFFZClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mapping, err := client.FetchChannel(t.Context(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestFFZClient_ServerErrorFails(t *testing.T) {
	client := newTestFFZClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchChannel(t.Context(), "somechannel")
	assert.Error(t, err)
}
