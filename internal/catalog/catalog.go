// Package catalog loads and serves the static emote sentiment catalog.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/metrics"
)

// Catalog maps emote names to hand-curated sentiment scores, loaded from a
// CSV file with EmoteName and SentimentScore columns. Reload swaps the whole
// map atomically so concurrent readers never see a partially loaded catalog.
type Catalog struct {
	path string

	mu     sync.RWMutex
	scores map[string]float64
}

// Load reads the catalog from path. A missing file is not an error: the
// catalog starts empty and every lookup misses, matching the behavior of a
// deployment that ships without the CSV.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path, scores: map[string]float64{}}

	scores, err := readScores(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Emote sentiment catalog not found, starting empty", "path", path)
			return c, nil
		}
		return nil, fmt.Errorf("failed to load emote sentiment catalog: %w", err)
	}

	c.scores = scores
	metrics.CatalogEntries.Set(float64(len(scores)))
	slog.Info("Loaded emote sentiment catalog", "path", path, "entries", len(scores))
	return c, nil
}

// Score returns the catalog score for an emote name. The exact name is tried
// first, then its lower-cased form.
func (c *Catalog) Score(name string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if score, ok := c.scores[name]; ok {
		return score, true
	}
	score, ok := c.scores[strings.ToLower(name)]
	return score, ok
}

// Size returns the number of catalog entries.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scores)
}

// Reload re-reads the CSV file and atomically replaces the score map.
// Returns the new entry count.
func (c *Catalog) Reload() (int, error) {
	scores, err := readScores(c.path)
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to reload emote sentiment catalog: %w", err)
	}

	c.mu.Lock()
	old := len(c.scores)
	c.scores = scores
	c.mu.Unlock()

	metrics.CatalogReloads.WithLabelValues("success").Inc()
	metrics.CatalogEntries.Set(float64(len(scores)))
	slog.Info("Reloaded emote sentiment catalog", "old_entries", old, "new_entries", len(scores))
	return len(scores), nil
}

func readScores(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return map[string]float64{}, nil
		}
		return nil, err
	}

	nameCol, scoreCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "EmoteName":
			nameCol = i
		case "SentimentScore":
			scoreCol = i
		}
	}
	if nameCol < 0 || scoreCol < 0 {
		return nil, fmt.Errorf("catalog header missing EmoteName/SentimentScore columns")
	}

	scores := make(map[string]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) <= nameCol || len(record) <= scoreCol {
			continue
		}

		name := strings.TrimSpace(record[nameCol])
		if name == "" {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(record[scoreCol]), 64)
		if err != nil {
			slog.Warn("Invalid sentiment score in catalog, skipping", "emote", name, "value", record[scoreCol])
			continue
		}
		scores[name] = score
	}

	return scores, nil
}
