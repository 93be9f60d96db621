package engine

import (
	"fmt"
	"sort"

	"github.com/allanai/rallymetrics/internal/config"
	"github.com/allanai/rallymetrics/internal/model"
)

// highlightResult is the highlight selector's output: materialized events
// plus the reference lists for the document's highlights block.
type highlightResult struct {
	Events     []model.Event
	Highlights model.Highlights
}

// selectHighlights derives play of the game, top rallies, fastest shots and
// best serves from the completed rallies and the shot stream. Selection is
// deterministic: scores and speeds break ties by earliest timestamp.
func selectHighlights(b *eventBuilder, cfg *config.Config, rallies []model.Rally, shots []model.Shot) highlightResult {
	var res highlightResult

	type scored struct {
		idx        int
		composite  float64
		dirChanges int
	}
	var candidates []scored
	for i := range rallies {
		r := &rallies[i]
		if !r.Complete {
			continue
		}
		dc := directionChanges(rallyDetections(r))
		c := cfg.WeightLength*float64(r.Length()) +
			cfg.WeightSpeed*r.AvgSpeed() +
			cfg.WeightDirectionChanges*float64(dc)
		candidates = append(candidates, scored{idx: i, composite: c, dirChanges: dc})
	}

	byComposite := make([]scored, len(candidates))
	copy(byComposite, candidates)
	sort.SliceStable(byComposite, func(i, j int) bool {
		a, b := byComposite[i], byComposite[j]
		if a.composite != b.composite {
			return a.composite > b.composite
		}
		return rallies[a.idx].StartMs < rallies[b.idx].StartMs
	})

	if len(byComposite) > 0 {
		best := byComposite[0]
		r := &rallies[best.idx]
		ev := b.build(
			model.PlayOfTheGameDetail{
				RallyLength:      r.Length(),
				AvgShotSpeed:     r.AvgSpeed(),
				DirectionChanges: best.dirChanges,
				CompositeScore:   best.composite,
			},
			fmt.Sprintf("%d-shot rally at %.1f avg speed", r.Length(), r.AvgSpeed()),
			rallyTimeline(r), 0, rallyConfidence(r), rallyDetections(r),
		)
		res.Events = append(res.Events, ev)
		res.Highlights.PlayOfTheGame = refOf(&ev)
	}

	// Top rallies must clear a length or speed bar before ranking.
	taken := 0
	for _, c := range byComposite {
		if taken >= cfg.HighlightLimit {
			break
		}
		r := &rallies[c.idx]
		if r.Length() < cfg.TopRallyMinLength && r.AvgSpeed() < cfg.TopRallySpeedThreshold {
			continue
		}
		ev := b.build(
			model.RallyHighlightDetail{
				RallyLength:    r.Length(),
				AvgShotSpeed:   r.AvgSpeed(),
				CompositeScore: c.composite,
			},
			fmt.Sprintf("%d-shot rally at %.1f avg speed", r.Length(), r.AvgSpeed()),
			rallyTimeline(r), 0, rallyConfidence(r), rallyDetections(r),
		)
		res.Events = append(res.Events, ev)
		res.Highlights.TopRallies = append(res.Highlights.TopRallies, *refOf(&ev))
		taken++
	}

	// Fastest shots across the whole stream, speed descending, earliest first
	// on ties.
	order := make([]int, len(shots))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &shots[order[i]], &shots[order[j]]
		if a.Speed != b.Speed {
			return a.Speed > b.Speed
		}
		return a.TimestampMs < b.TimestampMs
	})
	for _, i := range order {
		if len(res.Highlights.FastestShots) >= cfg.HighlightLimit {
			break
		}
		s := &shots[i]
		if s.Speed <= 0 {
			break
		}
		ev := b.build(
			model.FastestShotDetail{ShotSpeed: s.Speed, ShotType: s.ShotType},
			fmt.Sprintf("%s at %.1f", s.ShotType, s.Speed),
			shotTimeline(s), s.Player, s.Confidence, s.Detections,
		)
		res.Events = append(res.Events, ev)
		res.Highlights.FastestShots = append(res.Highlights.FastestShots, *refOf(&ev))
	}

	// Best serves: successful serves only, same ordering.
	for _, i := range order {
		if len(res.Highlights.BestServes) >= cfg.HighlightLimit {
			break
		}
		s := &shots[i]
		if s.Speed <= 0 {
			break
		}
		if s.ShotType != model.ShotServe || s.Result.Fault() {
			continue
		}
		ev := b.build(
			model.ServeAceDetail{ServeSpeed: s.Speed},
			fmt.Sprintf("Serve at %.1f by player %d", s.Speed, s.Player),
			shotTimeline(s), s.Player, s.Confidence, s.Detections,
		)
		res.Events = append(res.Events, ev)
		res.Highlights.BestServes = append(res.Highlights.BestServes, *refOf(&ev))
	}

	return res
}

// rallyDetections collects every shot detection in the rally, ordered by
// frame.
func rallyDetections(r *model.Rally) []model.Detection {
	var dets []model.Detection
	for i := range r.Shots {
		dets = append(dets, r.Shots[i].Detections...)
	}
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].FrameNumber < dets[j].FrameNumber })
	return dets
}

// directionChanges counts horizontal reversals of the ball across a
// frame-ordered detection series. A reversal is a sign flip of the
// frame-to-frame x delta.
func directionChanges(dets []model.Detection) int {
	if len(dets) < 3 {
		return 0
	}

	changes := 0
	prevSign := 0
	for i := 1; i < len(dets); i++ {
		dx := centerX(dets[i]) - centerX(dets[i-1])
		sign := 0
		if dx > 0 {
			sign = 1
		} else if dx < 0 {
			sign = -1
		}
		if sign != 0 && prevSign != 0 && sign != prevSign {
			changes++
		}
		if sign != 0 {
			prevSign = sign
		}
	}
	return changes
}

func centerX(d model.Detection) float64 { return d.X + d.Width/2 }

// rallyConfidence is the mean confidence of the rally's shots.
func rallyConfidence(r *model.Rally) float64 {
	if len(r.Shots) == 0 {
		return 0
	}
	var sum float64
	for i := range r.Shots {
		sum += r.Shots[i].Confidence
	}
	return sum / float64(len(r.Shots))
}

func refOf(ev *model.Event) *model.HighlightRef {
	return &model.HighlightRef{
		EventID:         ev.ID,
		TimestampMs:     ev.TimestampMs,
		TimestampSeries: ev.TimestampSeries,
	}
}
