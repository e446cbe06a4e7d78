// Package emotes fetches and caches emote mappings from the external
// channel-scoped and global emote sources.
package emotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

const fetchTimeout = 10 * time.Second

// errNotFound marks a "this channel is unknown to the source" response,
// which callers treat as an empty mapping rather than a failure.
var errNotFound = errors.New("not found")

// sourceGuard wraps one external emote source with a circuit breaker so a
// flapping upstream degrades fast instead of being hammered by every session
// start.
type sourceGuard struct {
	name string
	cb   circuitbreaker.CircuitBreaker[any]
}

func newSourceGuard(name string) *sourceGuard {
	g := &sourceGuard{name: name}
	g.cb = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 30*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Emote source circuit breaker state changed",
				"source", name,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.EmoteCircuitState.WithLabelValues(name).Set(stateToFloat(e.NewState))
		}).
		Build()
	return g
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// do executes an emote source fetch under the circuit breaker. A not-found
// response counts as success for breaker purposes - the upstream is healthy,
// the channel just has no emotes there.
func (g *sourceGuard) do(op func() error) error {
	if !g.cb.TryAcquirePermit() {
		metrics.EmoteFetchesTotal.WithLabelValues(g.name, "circuit_open").Inc()
		return fmt.Errorf("emote source %s circuit open: %w", g.name, circuitbreaker.ErrOpen)
	}

	err := op()
	if err != nil && !errors.Is(err, errNotFound) {
		g.cb.RecordError(err)
		return err
	}
	g.cb.RecordSuccess()
	return err
}

// getJSON performs a GET against an emote source API and decodes the JSON
// body into out. Returns errNotFound for a 404.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close emote source response body", "error", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
