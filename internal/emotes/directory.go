package emotes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// ChannelEmotes is the result of fetching both channel-scoped sources.
// A source that failed or knew nothing about the channel contributes an empty
// mapping plus a human-readable warning; partial results are always usable.
type ChannelEmotes struct {
	SourceA  domain.EmoteMapping // 7TV channel emotes, shadow SourceB and Global
	SourceB  domain.EmoteMapping // FFZ channel emotes, shadow Global
	Warnings []string
}

// Directory coordinates fetches against the external emote sources. The
// global mapping is fetched once per process (single-flight across concurrent
// sessions) and handed out as a shared read-only copy until explicitly
// invalidated; channel mappings are fetched fresh for every session start.
type Directory struct {
	identity     domain.IdentityResolver
	sourceA      domain.ChannelEmoteSource
	sourceB      domain.ChannelEmoteSource
	globalSource domain.GlobalEmoteSource

	group singleflight.Group

	mu     sync.RWMutex
	global domain.EmoteMapping // nil until the first successful fetch
}

// NewDirectory creates a directory over the given collaborators.
// sourceA is keyed by platform user id, sourceB by channel login.
func NewDirectory(identity domain.IdentityResolver, sourceA, sourceB domain.ChannelEmoteSource, globalSource domain.GlobalEmoteSource) *Directory {
	return &Directory{
		identity:     identity,
		sourceA:      sourceA,
		sourceB:      sourceB,
		globalSource: globalSource,
	}
}

// Global returns the cached global emote mapping, fetching it on first use.
// Concurrent callers share a single in-flight fetch. Callers must treat the
// returned mapping as read-only; Invalidate swaps the cached map wholesale so
// in-progress readers keep their complete copy.
func (d *Directory) Global(ctx context.Context) (domain.EmoteMapping, error) {
	d.mu.RLock()
	cached := d.global
	d.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := d.group.Do("global", func() (any, error) {
		// Re-check under the flight: a racing reload may have repopulated.
		d.mu.RLock()
		cached := d.global
		d.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		mapping, err := d.globalSource.FetchGlobal(ctx)
		if err != nil {
			return nil, fmt.Errorf("global emote fetch failed: %w", err)
		}

		d.mu.Lock()
		d.global = mapping
		d.mu.Unlock()

		slog.Info("Fetched global emotes", "count", len(mapping))
		return mapping, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.EmoteMapping), nil
}

// InvalidateGlobal drops the cached global mapping so the next Global call
// refetches it.
func (d *Directory) InvalidateGlobal() {
	d.mu.Lock()
	d.global = nil
	d.mu.Unlock()
	metrics.GlobalEmoteCacheReloads.Inc()
	slog.Info("Invalidated global emote cache")
}

// GlobalCached reports the size of the cached global mapping and whether one
// is present, without triggering a fetch.
func (d *Directory) GlobalCached() (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.global == nil {
		return 0, false
	}
	return len(d.global), true
}

// Channel fetches both channel-scoped mappings for a channel login. The
// identity lookup runs first; if it fails, both mappings are empty and a
// single warning explains why. Otherwise the two sources are queried
// concurrently and each failure degrades to an empty mapping with a warning.
func (d *Directory) Channel(ctx context.Context, channel string) ChannelEmotes {
	channel = domain.NormalizeChannel(channel)
	result := ChannelEmotes{
		SourceA: domain.EmoteMapping{},
		SourceB: domain.EmoteMapping{},
	}

	userID, err := d.identity.ResolveUserID(ctx, channel)
	if err != nil {
		slog.Warn("Identity lookup failed, skipping channel emote fetch", "channel", channel, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not resolve channel identity for %s; channel emotes unavailable.", channel))
		return result
	}

	var wg sync.WaitGroup
	var warnA, warnB string

	wg.Add(2)
	go func() {
		defer wg.Done()
		mapping, err := d.sourceA.FetchChannel(ctx, userID)
		if err != nil {
			slog.Warn("Channel emote fetch failed", "channel", channel, "source", "seventv_channel", "error", err)
			warnA = "7TV channel emotes unavailable."
			return
		}
		result.SourceA = mapping
	}()
	go func() {
		defer wg.Done()
		mapping, err := d.sourceB.FetchChannel(ctx, channel)
		if err != nil {
			slog.Warn("Channel emote fetch failed", "channel", channel, "source", "ffz", "error", err)
			warnB = "FFZ channel emotes unavailable."
			return
		}
		result.SourceB = mapping
	}()
	wg.Wait()

	if warnA != "" {
		result.Warnings = append(result.Warnings, warnA)
	}
	if warnB != "" {
		result.Warnings = append(result.Warnings, warnB)
	}

	slog.Info("Fetched channel emotes",
		"channel", channel,
		"seventv", len(result.SourceA),
		"ffz", len(result.SourceB),
		"warnings", len(result.Warnings),
	)
	return result
}
