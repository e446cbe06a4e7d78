// Package nlp provides the default sentiment-scoring and keyword-extraction
// collaborators used by the enrichment pipeline.
package nlp

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

// VaderScorer scores chat lines with a VADER sentiment analyzer.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer creates a scorer with the default VADER lexicon.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the compound score for the whole text plus a per-token score
// map. Tokens with a neutral score are omitted so the map only highlights
// impactful words. Empty text scores neutral with no token entries.
func (s *VaderScorer) Score(text string) (*float64, map[string]float64) {
	tokenScores := make(map[string]float64)
	if strings.TrimSpace(text) == "" {
		zero := 0.0
		return &zero, tokenScores
	}

	compound := round3(s.analyzer.PolarityScores(text).Compound)

	for _, token := range strings.Fields(text) {
		if _, seen := tokenScores[token]; seen {
			continue
		}
		if score := round3(s.analyzer.PolarityScores(token).Compound); score != 0 {
			tokenScores[token] = score
		}
	}

	return &compound, tokenScores
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
