package engine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/allanai/rallymetrics/internal/model"
)

// importanceByType ranks event kinds on the shared 1..10 scale.
var importanceByType = map[model.EventType]int{
	model.EventPlayOfTheGame:  10,
	model.EventFastestShot:    8,
	model.EventRallyHighlight: 7,
	model.EventServeAce:       6,
	model.EventScore:          5,
	model.EventMiss:           3,
}

var titleByType = map[model.EventType]string{
	model.EventPlayOfTheGame:  "Play of the Game",
	model.EventFastestShot:    "Fastest Shot",
	model.EventRallyHighlight: "Rally Highlight",
	model.EventServeAce:       "Serve Ace",
	model.EventScore:          "Point Scored",
	model.EventMiss:           "Missed Return",
}

// eventBuilder materializes match events with deterministic ids. The id is a
// name-based UUID over match id, event type and per-type ordinal, so the same
// input document always yields the same event ids.
type eventBuilder struct {
	matchID  string
	source   string
	window   model.EventWindow
	lowConf  float64
	ordinals map[model.EventType]int

	trajectories  []trajectoryRef
	trajTolerance int64
}

// trajectoryRef is a producer-reported ball trajectory anchored at its
// event's primary timestamp.
type trajectoryRef struct {
	ts   int64
	path [][]float64
}

func newEventBuilder(matchID, source string, window model.EventWindow, lowConf float64) *eventBuilder {
	return &eventBuilder{
		matchID:  matchID,
		source:   source,
		window:   window,
		lowConf:  lowConf,
		ordinals: make(map[model.EventType]int),
	}
}

// attachTrajectories indexes producer event trajectories so built events can
// carry the trajectory recorded nearest to them, up to toleranceMs away.
func (b *eventBuilder) attachTrajectories(evs []normalizedEvent, toleranceMs int64) {
	b.trajTolerance = toleranceMs
	for _, ev := range evs {
		if len(ev.trajectory) > 0 {
			b.trajectories = append(b.trajectories, trajectoryRef{ts: ev.timeline.primaryMs, path: ev.trajectory})
		}
	}
}

// trajectoryNear returns the closest indexed trajectory within the
// tolerance; ties keep the earlier one.
func (b *eventBuilder) trajectoryNear(ts int64) [][]float64 {
	var best [][]float64
	bestDist := b.trajTolerance + 1
	for _, r := range b.trajectories {
		d := r.ts - ts
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist, best = d, r.path
		}
	}
	return best
}

// trajectoryFromDetections rebuilds a ball path from detection box centers,
// in frame order.
func trajectoryFromDetections(dets []model.Detection) [][]float64 {
	if len(dets) == 0 {
		return nil
	}
	sorted := make([]model.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FrameNumber < sorted[j].FrameNumber })

	out := make([][]float64, len(sorted))
	for i, d := range sorted {
		out[i] = []float64{d.X + d.Width/2, d.Y + d.Height/2}
	}
	return out
}

func (b *eventBuilder) build(detail model.Detail, desc string, tl timeline, player int, conf float64, detections []model.Detection) model.Event {
	kind := detail.Kind()
	ord := b.ordinals[kind]
	b.ordinals[kind] = ord + 1

	name := fmt.Sprintf("%s/%s/%d", b.matchID, kind, ord)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()

	ev := model.Event{
		ID:              id,
		Type:            kind,
		Title:           titleByType[kind],
		Description:     desc,
		TimestampMs:     tl.primaryMs,
		TimestampSeries: tl.seriesMs,
		FrameSeries:     tl.frames,
		Player:          player,
		Importance:      clampImportance(importanceByType[kind]),
		Meta: model.EventMeta{
			Window:        b.window,
			Confidence:    conf,
			LowConfidence: conf < b.lowConf,
			Source:        b.source,
			Detections:    detections,
			Detail:        detail,
		},
	}
	if len(tl.frames) > 0 {
		ev.Meta.FrameNumber = tl.frames[0]
	}
	if traj := b.trajectoryNear(tl.primaryMs); len(traj) > 0 {
		ev.Meta.BallTrajectory = traj
	} else {
		ev.Meta.BallTrajectory = trajectoryFromDetections(detections)
	}
	return ev
}

func clampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// shotTimeline rebuilds the timeline view of an already normalized shot.
func shotTimeline(s *model.Shot) timeline {
	return timeline{primaryMs: s.TimestampMs, seriesMs: s.TimestampSeries, frames: s.FrameSeries}
}

// rallyTimeline spans a rally from its first to its last shot.
func rallyTimeline(r *model.Rally) timeline {
	tl := timeline{primaryMs: r.StartMs, seriesMs: []int64{r.StartMs}}
	if r.EndMs != r.StartMs {
		tl.seriesMs = append(tl.seriesMs, r.EndMs)
	}
	first, last := &r.Shots[0], &r.Shots[len(r.Shots)-1]
	if len(first.FrameSeries) > 0 {
		tl.frames = append(tl.frames, first.FrameSeries[0])
	}
	if len(last.FrameSeries) > 0 {
		lf := last.FrameSeries[len(last.FrameSeries)-1]
		if len(tl.frames) == 0 || lf != tl.frames[0] {
			tl.frames = append(tl.frames, lf)
		}
	}
	return tl
}
