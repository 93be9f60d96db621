// Package engine turns one validated inference document into a complete
// match document: normalized timelines, segmented rallies, a derived score,
// recomputed statistics, selected highlights, and a processing summary.
//
// A run either completes in full or fails with an error; no partial or
// patched document is ever produced.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/allanai/rallymetrics/internal/config"
	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/model"
)

// Engine runs the processing pipeline. Safe for concurrent use; each run
// builds its own result and shares no state with other runs.
type Engine struct {
	cfg *config.Config
	log *slog.Logger
	now func() time.Time
}

// New returns an engine using cfg's thresholds and weights.
func New(cfg *config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, log: log, now: time.Now}
}

// Process runs the full pipeline for one match and returns the document to
// persist. The input document is not modified.
func (e *Engine) Process(ctx context.Context, matchID string, doc *ingest.Document) (*model.MatchDocument, error) {
	start := e.now()

	if err := ingest.Validate(doc); err != nil {
		return nil, err
	}
	if len(doc.Shots) == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, ingest.ErrEmptyInput)
	}

	fps := resolveFPS(doc)

	shots, err := normalizeShots(doc.Shots, fps, e.cfg.PreEventFrames, e.cfg.PostEventFrames)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	evs, err := normalizeEvents(doc.Events, fps, e.cfg.PreEventFrames, e.cfg.PostEventFrames)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortShots(shots)
	rallies := segmentRallies(shots, e.cfg.InterShotGapMs)

	window := model.EventWindow{
		PreMs:  framesToMs(e.cfg.PreEventFrames, fps),
		PostMs: framesToMs(e.cfg.PostEventFrames, fps),
	}
	source := doc.Source
	if source == "" {
		source = "MODEL"
	}
	builder := newEventBuilder(matchID, source, window, e.cfg.LowConfidenceThreshold)
	// Producer trajectories recorded within one inter-shot gap of a derived
	// event describe the same point of play.
	builder.attachTrajectories(evs, e.cfg.InterShotGapMs)

	score := trackScore(builder, rallies)
	stats := aggregate(shots, rallies, score)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hl := selectHighlights(builder, e.cfg, rallies, shots)

	events := make([]model.Event, 0, len(score.Events)+len(hl.Events))
	events = append(events, score.Events...)
	events = append(events, hl.Events...)
	sortEvents(events)

	summary := buildSummary(doc, evs, &stats, score, rallies)

	out := &model.MatchDocument{
		MatchID:     matchID,
		Status:      model.StatusComplete,
		ProcessedAt: e.now().UTC(),
		FPS:         fps,
		Events:      events,
		Shots:       shots,
		Statistics:  stats,
		Highlights:  hl.Highlights,
		Summary:     summary,
	}

	e.log.InfoContext(ctx, "match processed",
		"match_id", matchID,
		"shots", len(shots),
		"rallies", stats.TotalRallies,
		"events", len(events),
		"score", fmt.Sprintf("%d-%d", stats.Player1Score, stats.Player2Score),
		"duration", e.now().Sub(start),
	)
	return out, nil
}

// sortEvents orders the output stream by timestamp, then importance
// descending, then id, so identical input yields an identical document.
func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.ID < b.ID
	})
}
