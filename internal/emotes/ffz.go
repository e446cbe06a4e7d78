package emotes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

const ffzRoomURL = "https://api.frankerfacez.com/v1/room/"

// FFZClient fetches channel emotes from the FrankerFaceZ room API, keyed by
// the channel's login name.
type FFZClient struct {
	httpClient *http.Client
	baseURL    string
	guard      *sourceGuard
}

// NewFFZClient creates an FFZ source client. httpClient may be nil.
func NewFFZClient(httpClient *http.Client) *FFZClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FFZClient{
		httpClient: httpClient,
		baseURL:    ffzRoomURL,
		guard:      newSourceGuard("ffz"),
	}
}

type ffzRoomResponse struct {
	Sets map[string]struct {
		Emoticons []struct {
			Name string            `json:"name"`
			URLs map[string]string `json:"urls"`
		} `json:"emoticons"`
	} `json:"sets"`
}

// FetchChannel returns the FFZ emote mapping for a channel login.
// An unknown channel yields an empty mapping.
func (c *FFZClient) FetchChannel(ctx context.Context, login string) (domain.EmoteMapping, error) {
	mapping := domain.EmoteMapping{}

	err := c.guard.do(func() error {
		var body ffzRoomResponse
		if err := getJSON(ctx, c.httpClient, c.baseURL+strings.ToLower(login), &body); err != nil {
			return err
		}

		for _, set := range body.Sets {
			for _, emote := range set.Emoticons {
				url, ok := emote.URLs["1"]
				if !ok || emote.Name == "" {
					continue
				}
				// FFZ URLs may be protocol-relative
				if !strings.HasPrefix(url, "http") {
					url = "https:" + url
				}
				mapping[emote.Name] = url
			}
		}
		return nil
	})
	if errors.Is(err, errNotFound) {
		metrics.EmoteFetchesTotal.WithLabelValues("ffz", "empty").Inc()
		return domain.EmoteMapping{}, nil
	}
	if err != nil {
		metrics.EmoteFetchesTotal.WithLabelValues("ffz", "error").Inc()
		return domain.EmoteMapping{}, err
	}

	metrics.EmoteFetchesTotal.WithLabelValues("ffz", "ok").Inc()
	return mapping, nil
}
