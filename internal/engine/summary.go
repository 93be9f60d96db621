package engine

import (
	"fmt"
	"math"

	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/model"
)

// buildSummary records provenance and diagnostics for a completed run.
// Producer-reported aggregates that disagree with the recomputed ones
// produce notes, never corrections.
func buildSummary(doc *ingest.Document, evs []normalizedEvent, stats *model.MatchStatistics, score scoreResult, rallies []model.Rally) model.ProcessingSummary {
	source := doc.Source
	if source == "" {
		source = "MODEL"
	}
	sum := model.ProcessingSummary{
		PrimarySource: source,
		Sources:       []string{source},
		OK:            true,
	}

	note := func(format string, args ...any) {
		sum.Notes = append(sum.Notes, fmt.Sprintf(format, args...))
	}

	note("processed %d shots and %d producer events", len(doc.Shots), len(doc.Events))

	if score.Unscored > 0 {
		note("%d of %d rallies ended without an attributable point", score.Unscored, stats.TotalRallies)
	}
	for i := range rallies {
		if !rallies[i].Complete {
			note("open rally at end of stream excluded from rally aggregates")
			break
		}
	}

	producerScores := 0
	for _, ev := range evs {
		if ev.kind == "SCORE" {
			producerScores++
		}
	}
	if producerScores > 0 && producerScores != len(score.Samples) {
		note("producer reported %d score events, derived %d", producerScores, len(score.Samples))
	}

	if st := doc.Statistics; st != nil {
		if st.Player1Score != nil && *st.Player1Score != stats.Player1Score {
			note("producer player1Score %d disagrees with derived %d", *st.Player1Score, stats.Player1Score)
		}
		if st.Player2Score != nil && *st.Player2Score != stats.Player2Score {
			note("producer player2Score %d disagrees with derived %d", *st.Player2Score, stats.Player2Score)
		}
		if st.TotalRallies != nil && *st.TotalRallies != stats.TotalRallies {
			note("producer totalRallies %d disagrees with derived %d", *st.TotalRallies, stats.TotalRallies)
		}
		if st.MaxBallSpeed != nil && !closeEnough(*st.MaxBallSpeed, stats.ShotSpeedMetrics.FastestShotSpeed) {
			note("producer maxBallSpeed %.1f disagrees with derived %.1f", *st.MaxBallSpeed, stats.ShotSpeedMetrics.FastestShotSpeed)
		}
	}

	return sum
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 0.5
}
