package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/allanai/rallymetrics/internal/ingest"
	"github.com/allanai/rallymetrics/internal/model"
)

var (
	// ErrNoFPS means the document carries frame-indexed entities but no
	// explicit or inferable frame rate. There is no fixed-fps fallback;
	// guessing would misalign every derived highlight.
	ErrNoFPS = errors.New("frame-indexed input without fps: producer reported no frame rate and none could be inferred")

	// ErrNoTimeline means an entity carries neither timestamps nor frames.
	ErrNoTimeline = errors.New("entity has no timestamp and no frame data")
)

// timeline is the canonical time representation of one entity: an ascending,
// deduplicated ms series that always contains the primary timestamp, plus
// the ascending frame series when frames were reported.
type timeline struct {
	primaryMs int64
	seriesMs  []int64
	frames    []int
}

// resolveFPS returns the frame rate for frame→ms conversion: the producer's
// explicit fps when present, otherwise inferred from producer statistics
// (duration / frame count). Returns 0 when neither is available; whether
// that is fatal depends on the entities, so the caller decides.
func resolveFPS(doc *ingest.Document) float64 {
	if doc.FPS > 0 {
		return doc.FPS
	}
	if st := doc.Statistics; st != nil && st.DurationSeconds != nil && st.TotalFrames != nil {
		if *st.DurationSeconds > 0 && *st.TotalFrames > 0 {
			return float64(*st.TotalFrames) / *st.DurationSeconds
		}
	}
	return 0
}

// normalizeTiming canonicalizes one entity's time representation. preFrames
// and postFrames size the synthetic window used when the producer reported a
// lone timestamp and the frame rate is known.
func normalizeTiming(t *ingest.Timing, fps float64, preFrames, postFrames int) (timeline, error) {
	var tl timeline

	// Frame series first: sorted, deduplicated, primary frame included.
	tl.frames = append(tl.frames, t.FrameSeries...)
	if t.Frame != nil {
		tl.frames = append(tl.frames, int(*t.Frame))
	}
	sort.Ints(tl.frames)
	tl.frames = dedupeInts(tl.frames)

	// Primary timestamp, in preference order.
	switch {
	case t.TimestampMs != nil:
		tl.primaryMs = int64(math.Round(*t.TimestampMs))
	case len(t.TimestampSeries) > 0:
		min := t.TimestampSeries[0]
		for _, v := range t.TimestampSeries[1:] {
			if v < min {
				min = v
			}
		}
		tl.primaryMs = int64(math.Round(min))
	case len(tl.frames) > 0:
		if fps <= 0 {
			return timeline{}, ErrNoFPS
		}
		tl.primaryMs = frameToMs(tl.frames[0], fps)
	default:
		return timeline{}, ErrNoTimeline
	}

	// Timestamp series: producer series when present, otherwise the frame
	// series converted, otherwise a synthetic window around the primary.
	switch {
	case len(t.TimestampSeries) > 0:
		for _, v := range t.TimestampSeries {
			tl.seriesMs = append(tl.seriesMs, int64(math.Round(v)))
		}
	case len(tl.frames) > 0 && fps > 0:
		for _, fr := range tl.frames {
			tl.seriesMs = append(tl.seriesMs, frameToMs(fr, fps))
		}
	case fps > 0:
		pre := framesToMs(preFrames, fps)
		post := framesToMs(postFrames, fps)
		start := tl.primaryMs - pre
		if start < 0 {
			start = 0
		}
		tl.seriesMs = append(tl.seriesMs, start, tl.primaryMs+post)
	}

	// The primary is always a member of its own series.
	tl.seriesMs = append(tl.seriesMs, tl.primaryMs)
	sort.Slice(tl.seriesMs, func(i, j int) bool { return tl.seriesMs[i] < tl.seriesMs[j] })
	tl.seriesMs = dedupeInt64s(tl.seriesMs)

	return tl, nil
}

// normalizeShots converts raw producer shots into domain shots with
// canonical timelines. Fails on the first shot whose timeline cannot be
// normalized; the run is then terminal.
func normalizeShots(shots []ingest.Shot, fps float64, preFrames, postFrames int) ([]model.Shot, error) {
	out := make([]model.Shot, 0, len(shots))
	for i := range shots {
		raw := &shots[i]
		tl, err := normalizeTiming(&raw.Timing, fps, preFrames, postFrames)
		if err != nil {
			return nil, fmt.Errorf("shots[%d]: %w", i, err)
		}
		sh := model.Shot{
			TimestampMs:     tl.primaryMs,
			TimestampSeries: tl.seriesMs,
			FrameSeries:     tl.frames,
			ShotType:        model.ParseShotType(raw.ShotType),
			Result:          model.ParseShotResult(raw.Result),
			Confidence:      raw.Confidence,
			Detections:      convertDetections(raw.Detections),
		}
		if raw.Player != nil {
			sh.Player = *raw.Player
		}
		if raw.Speed != nil {
			sh.Speed = *raw.Speed
		}
		if raw.Accuracy != nil {
			sh.Accuracy = *raw.Accuracy
		}
		out = append(out, sh)
	}
	return out, nil
}

// normalizedEvent is a producer event after timeline normalization. Producer
// events are consistency signals; the engine derives its own events from the
// shot stream.
type normalizedEvent struct {
	timeline   timeline
	kind       string
	player     int
	conf       float64
	trajectory [][]float64
}

// normalizeEvents canonicalizes producer event timelines. A producer event
// whose timeline cannot be normalized fails the run the same way a shot
// does.
func normalizeEvents(events []ingest.Event, fps float64, preFrames, postFrames int) ([]normalizedEvent, error) {
	out := make([]normalizedEvent, 0, len(events))
	for i := range events {
		raw := &events[i]
		pre, post := preFrames, postFrames
		if raw.PreEventFrames != nil {
			pre = *raw.PreEventFrames
		}
		if raw.PostEventFrames != nil {
			post = *raw.PostEventFrames
		}
		tl, err := normalizeTiming(&raw.Timing, fps, pre, post)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		ne := normalizedEvent{timeline: tl, kind: raw.Type, conf: raw.Confidence, trajectory: raw.BallTrajectory}
		if ne.kind == "" {
			ne.kind = raw.Label
		}
		if raw.Player != nil {
			ne.player = *raw.Player
		}
		out = append(out, ne)
	}
	return out, nil
}

func convertDetections(in []ingest.Detection) []model.Detection {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Detection, len(in))
	for i, d := range in {
		out[i] = model.Detection{
			FrameNumber: d.FrameNumber,
			X:           d.X,
			Y:           d.Y,
			Width:       d.Width,
			Height:      d.Height,
			Confidence:  d.Confidence,
		}
	}
	return out
}

func frameToMs(frame int, fps float64) int64 {
	return int64(math.Round(float64(frame) / fps * 1000))
}

func framesToMs(frames int, fps float64) int64 {
	if frames <= 0 || fps <= 0 {
		return 0
	}
	return int64(math.Round(float64(frames) / fps * 1000))
}

func dedupeInts(in []int) []int {
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func dedupeInt64s(in []int64) []int64 {
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
