// Package enrich turns raw chat lines into enriched dashboard messages.
package enrich

import (
	"log/slog"
	"strings"
	"time"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// Emote source labels reported in enriched messages.
const (
	SourceTwitch  = "twitch"
	SourceSevenTV = "7tv"
	SourceFFZ     = "ffz"
)

// nativeEmoteURL builds the CDN URL for a platform-native emote id.
func nativeEmoteURL(id string) string {
	return "https://static-cdn.jtvnw.net/emoticons/v2/" + id + "/default/dark/1.0"
}

// CatalogScorer looks up curated sentiment scores for emote names.
type CatalogScorer interface {
	Score(name string) (float64, bool)
}

// Pipeline enriches chat lines with sentiment, keywords, and detected emotes.
// It is stateless apart from its collaborators and safe for concurrent use.
type Pipeline struct {
	scorer      domain.SentimentScorer
	extractor   domain.KeywordExtractor
	catalog     CatalogScorer
	maxKeywords int
}

// NewPipeline creates an enrichment pipeline. catalog may be nil.
func NewPipeline(scorer domain.SentimentScorer, extractor domain.KeywordExtractor, catalog CatalogScorer, maxKeywords int) *Pipeline {
	return &Pipeline{
		scorer:      scorer,
		extractor:   extractor,
		catalog:     catalog,
		maxKeywords: maxKeywords,
	}
}

// Enrich processes one raw chat event against an emote snapshot. It never
// fails: a panicking collaborator is recovered and reported through the
// dropped return value so a malformed line cannot take the session down.
func (p *Pipeline) Enrich(raw domain.RawChatEvent, snapshot domain.EmoteSnapshot) (msg domain.EnrichedMessage, dropped bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Enrichment panicked, dropping message", "author", raw.Author, "panic", r)
			metrics.MessagesEnriched.WithLabelValues("dropped").Inc()
			dropped = true
			return
		}
		metrics.MessagesEnriched.WithLabelValues("ok").Inc()
		metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
	}()

	compound, wordScores := p.scoreSentiment(raw.Content)

	msg = domain.EnrichedMessage{
		Timestamp:      raw.Timestamp,
		Author:         raw.Author,
		Content:        raw.Content,
		SentimentScore: compound,
		SentimentWords: wordScores,
		Keywords:       p.extractor.Keywords(raw.Content, p.maxKeywords),
		DetectedEmotes: p.detectEmotes(raw, snapshot, wordScores),
	}
	return msg, false
}

// scoreSentiment combines catalog scores with the scorer's per-token scores.
// Catalog entries claim their tokens first; the scorer fills in non-neutral
// scores for everything else and supplies the compound score.
func (p *Pipeline) scoreSentiment(content string) (*float64, map[string]float64) {
	wordScores := make(map[string]float64)

	if p.catalog != nil {
		for _, token := range strings.Fields(content) {
			if _, seen := wordScores[token]; seen {
				continue
			}
			if score, ok := p.catalog.Score(token); ok {
				wordScores[token] = score
			}
		}
	}

	compound, tokenScores := p.scorer.Score(content)
	for token, score := range tokenScores {
		if _, claimed := wordScores[token]; claimed {
			continue
		}
		wordScores[token] = score
	}

	return compound, wordScores
}

// detectEmotes builds the detected emote list. Platform-native emotes from
// message tags come first; the channel and global mappings are scanned per
// whitespace token, with channel sources shadowing the global set. Each emote
// name appears at most once, earliest detection wins.
func (p *Pipeline) detectEmotes(raw domain.RawChatEvent, snapshot domain.EmoteSnapshot, wordScores map[string]float64) []domain.EmoteEntry {
	detected := make([]domain.EmoteEntry, 0, len(raw.NativeEmotes))
	seen := make(map[string]struct{})

	for _, native := range raw.NativeEmotes {
		if _, ok := seen[native.Name]; ok {
			continue
		}
		seen[native.Name] = struct{}{}
		detected = append(detected, domain.EmoteEntry{
			Name:           native.Name,
			URL:            nativeEmoteURL(native.ID),
			Source:         SourceTwitch,
			SentimentScore: emoteScore(wordScores, native.Name),
		})
	}

	for _, token := range strings.Fields(raw.Content) {
		if _, ok := seen[token]; ok {
			continue
		}

		var url, source string
		switch {
		case lookup(snapshot.ChannelA, token, &url):
			source = SourceSevenTV
		case lookup(snapshot.ChannelB, token, &url):
			source = SourceFFZ
		case lookup(snapshot.Global, token, &url):
			source = SourceSevenTV
		default:
			continue
		}

		seen[token] = struct{}{}
		detected = append(detected, domain.EmoteEntry{
			Name:           token,
			URL:            url,
			Source:         source,
			SentimentScore: emoteScore(wordScores, token),
		})
	}

	return detected
}

func lookup(mapping domain.EmoteMapping, name string, url *string) bool {
	u, ok := mapping[name]
	if ok {
		*url = u
	}
	return ok
}

// emoteScore returns the sentiment score attached to an emote name, exact
// match first, lowercase as fallback. Nil when no score is known.
func emoteScore(wordScores map[string]float64, name string) *float64 {
	if score, ok := wordScores[name]; ok {
		return &score
	}
	if score, ok := wordScores[strings.ToLower(name)]; ok {
		return &score
	}
	return nil
}
