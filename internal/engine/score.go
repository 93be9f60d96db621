package engine

import (
	"fmt"

	"github.com/allanai/rallymetrics/internal/model"
)

// rallyOutcome records the scoring decision for one completed rally.
type rallyOutcome struct {
	RallyIdx int
	Scorer   int
	Ace      bool
}

// scoreResult is the score tracker's output: one momentum sample and one
// SCORE event per scored rally, a MISS event per fault, and the final tally.
type scoreResult struct {
	Final    model.ScoreState
	Samples  []model.MomentumSample
	Events   []model.Event
	Outcomes []rallyOutcome
	Unscored int
}

// trackScore walks completed rallies in order and attributes points.
//
// A rally ended by an OUT/NET shot scores for the faulter's opponent. A
// rally closed implicitly that consists of a single successful serve scores
// for the server (an ace the model did not mark). Any other implicitly
// closed rally stays unscored; the score is never guessed.
func trackScore(b *eventBuilder, rallies []model.Rally) scoreResult {
	var res scoreResult

	for i := range rallies {
		r := &rallies[i]
		if !r.Complete {
			continue
		}

		var scorer int
		var ace bool
		if term := r.Terminator(); term != nil {
			scorer = model.Opponent(term.Player)
			res.Events = append(res.Events, b.build(
				model.MissDetail{
					FaultingPlayer: term.Player,
					Result:         term.Result,
					ShotSpeed:      term.Speed,
				},
				fmt.Sprintf("Shot %s by player %d", term.Result, term.Player),
				shotTimeline(term), term.Player, term.Confidence, term.Detections,
			))
		} else if r.Length() == 1 && r.Server != 0 {
			only := &r.Shots[0]
			if only.ShotType == model.ShotServe && only.Result == model.ResultIn {
				scorer = r.Server
				ace = true
			}
		}

		if scorer == 0 {
			res.Unscored++
			continue
		}

		switch scorer {
		case 1:
			res.Final.Player1++
		case 2:
			res.Final.Player2++
		}
		after := res.Final

		res.Samples = append(res.Samples, model.MomentumSample{
			TimestampMs:   r.EndMs,
			ScoringPlayer: scorer,
			ScoreAfter:    after,
			Lead:          after.Lead(),
		})
		res.Outcomes = append(res.Outcomes, rallyOutcome{RallyIdx: i, Scorer: scorer, Ace: ace})

		last := &r.Shots[len(r.Shots)-1]
		res.Events = append(res.Events, b.build(
			model.ScoreDetail{
				ScoringPlayer: scorer,
				ScoreAfter:    after,
				RallyLength:   r.Length(),
			},
			fmt.Sprintf("Player %d scores, %d-%d", scorer, after.Player1, after.Player2),
			shotTimeline(last), scorer, last.Confidence, last.Detections,
		))
	}

	return res
}
