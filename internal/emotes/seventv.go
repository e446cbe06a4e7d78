package emotes

import (
	"context"
	"errors"
	"net/http"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

const (
	sevenTVUserURL   = "https://7tv.io/v3/users/twitch/"
	sevenTVGlobalURL = "https://7tv.io/v3/emote-sets/global"
)

// SevenTVClient fetches channel emotes (keyed by the platform's numeric user
// id) and the global emote set from the 7TV API.
type SevenTVClient struct {
	httpClient   *http.Client
	userBaseURL  string
	globalURL    string
	channelGuard *sourceGuard
	globalGuard  *sourceGuard
}

// NewSevenTVClient creates a 7TV source client. httpClient may be nil.
func NewSevenTVClient(httpClient *http.Client) *SevenTVClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SevenTVClient{
		httpClient:   httpClient,
		userBaseURL:  sevenTVUserURL,
		globalURL:    sevenTVGlobalURL,
		channelGuard: newSourceGuard("seventv_channel"),
		globalGuard:  newSourceGuard("seventv_global"),
	}
}

type sevenTVEmote struct {
	Name string `json:"name"`
	Data struct {
		Host struct {
			URL   string `json:"url"`
			Files []struct {
				Name string `json:"name"`
			} `json:"files"`
		} `json:"host"`
	} `json:"data"`
}

type sevenTVUserResponse struct {
	EmoteSet *struct {
		Emotes []sevenTVEmote `json:"emotes"`
	} `json:"emote_set"`
	Emotes []sevenTVEmote `json:"emotes"`
}

type sevenTVGlobalResponse struct {
	Emotes []sevenTVEmote `json:"emotes"`
}

// FetchChannel returns the 7TV emote mapping for a platform user id.
// An id unknown to 7TV yields an empty mapping.
func (c *SevenTVClient) FetchChannel(ctx context.Context, userID string) (domain.EmoteMapping, error) {
	mapping := domain.EmoteMapping{}
	if userID == "" {
		return mapping, nil
	}

	err := c.channelGuard.do(func() error {
		var body sevenTVUserResponse
		if err := getJSON(ctx, c.httpClient, c.userBaseURL+userID, &body); err != nil {
			return err
		}

		emoteList := body.Emotes
		if body.EmoteSet != nil {
			emoteList = body.EmoteSet.Emotes
		}
		collectSevenTVEmotes(mapping, emoteList)
		return nil
	})
	if errors.Is(err, errNotFound) {
		metrics.EmoteFetchesTotal.WithLabelValues("seventv_channel", "empty").Inc()
		return domain.EmoteMapping{}, nil
	}
	if err != nil {
		metrics.EmoteFetchesTotal.WithLabelValues("seventv_channel", "error").Inc()
		return domain.EmoteMapping{}, err
	}

	metrics.EmoteFetchesTotal.WithLabelValues("seventv_channel", "ok").Inc()
	return mapping, nil
}

// FetchGlobal returns the 7TV global emote mapping.
func (c *SevenTVClient) FetchGlobal(ctx context.Context) (domain.EmoteMapping, error) {
	mapping := domain.EmoteMapping{}

	err := c.globalGuard.do(func() error {
		var body sevenTVGlobalResponse
		if err := getJSON(ctx, c.httpClient, c.globalURL, &body); err != nil {
			return err
		}
		collectSevenTVEmotes(mapping, body.Emotes)
		return nil
	})
	if err != nil {
		metrics.EmoteFetchesTotal.WithLabelValues("seventv_global", "error").Inc()
		return domain.EmoteMapping{}, err
	}

	metrics.EmoteFetchesTotal.WithLabelValues("seventv_global", "ok").Inc()
	return mapping, nil
}

// collectSevenTVEmotes picks the smallest WebP rendition of each emote.
func collectSevenTVEmotes(mapping domain.EmoteMapping, emoteList []sevenTVEmote) {
	for _, emote := range emoteList {
		if emote.Name == "" {
			continue
		}
		for _, file := range emote.Data.Host.Files {
			if file.Name == "1x.webp" {
				mapping[emote.Name] = emote.Data.Host.URL + "/" + file.Name
				break
			}
		}
	}
}
