package engine

import (
	"testing"

	"github.com/allanai/rallymetrics/internal/model"
)

func testBuilder() *eventBuilder {
	return newEventBuilder("match-1", "MODEL", model.EventWindow{PreMs: 33, PostMs: 100}, 0.35)
}

func TestTrackScoreFaultAwardsOpponent(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(500, 2, model.ShotForehand, model.ResultIn),
		shot(900, 2, model.ShotBackhand, model.ResultNet),
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if res.Final.Player1 != 1 || res.Final.Player2 != 0 {
		t.Fatalf("final score: got %d-%d, want 1-0", res.Final.Player1, res.Final.Player2)
	}
	if len(res.Samples) != 1 {
		t.Fatalf("got %d momentum samples, want 1", len(res.Samples))
	}
	s := res.Samples[0]
	if s.ScoringPlayer != 1 || s.Lead != 1 || s.TimestampMs != 900 {
		t.Fatalf("sample: %+v", s)
	}

	var haveScore, haveMiss bool
	for _, ev := range res.Events {
		switch ev.Type {
		case model.EventScore:
			haveScore = true
			d := ev.Meta.Detail.(model.ScoreDetail)
			if d.ScoringPlayer != 1 || d.RallyLength != 3 {
				t.Fatalf("score detail: %+v", d)
			}
		case model.EventMiss:
			haveMiss = true
			d := ev.Meta.Detail.(model.MissDetail)
			if d.FaultingPlayer != 2 || d.Result != model.ResultNet {
				t.Fatalf("miss detail: %+v", d)
			}
		}
	}
	if !haveScore || !haveMiss {
		t.Fatalf("want one SCORE and one MISS event, got %d events", len(res.Events))
	}
}

func TestTrackScoreLoneServeIsAce(t *testing.T) {
	shots := []model.Shot{
		shot(0, 2, model.ShotServe, model.ResultIn),
		shot(5000, 1, model.ShotServe, model.ResultIn),
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if res.Final.Player2 != 1 {
		t.Fatalf("lone in serve should score for the server: %+v", res.Final)
	}
	if len(res.Outcomes) != 1 || !res.Outcomes[0].Ace {
		t.Fatalf("outcome should be an ace: %+v", res.Outcomes)
	}
}

func TestTrackScoreGapClosedRallyUnscored(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(500, 2, model.ShotForehand, model.ResultIn),
		shot(6000, 1, model.ShotServe, model.ResultIn),
		shot(6400, 2, model.ShotForehand, model.ResultOut),
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if res.Unscored != 1 {
		t.Fatalf("gap-closed multi-shot rally must stay unscored: %+v", res)
	}
	if res.Final.Player1 != 1 || res.Final.Player2 != 0 {
		t.Fatalf("final score: got %d-%d, want 1-0", res.Final.Player1, res.Final.Player2)
	}
}

func TestTrackScoreUnattributedFaultUnscored(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(500, 0, model.ShotForehand, model.ResultOut),
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if res.Unscored != 1 || res.Final != (model.ScoreState{}) {
		t.Fatalf("fault without player attribution must not score: %+v", res)
	}
}

func TestTrackScoreMonotonicProgression(t *testing.T) {
	var shots []model.Shot
	for i := 0; i < 5; i++ {
		base := int64(i) * 10000
		loser := 1 + i%2
		shots = append(shots,
			shot(base, 1, model.ShotServe, model.ResultIn),
			shot(base+400, loser, model.ShotForehand, model.ResultOut),
		)
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if len(res.Samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(res.Samples))
	}
	for i, s := range res.Samples {
		if got := s.ScoreAfter.Player1 + s.ScoreAfter.Player2; got != i+1 {
			t.Fatalf("sample %d: total score %d, want %d", i, got, i+1)
		}
		if i > 0 && s.TimestampMs <= res.Samples[i-1].TimestampMs {
			t.Fatalf("samples out of order at %d", i)
		}
	}
}

func TestTrackScoreSkipsIncompleteRally(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(400, 2, model.ShotForehand, model.ResultIn),
	}
	rallies := segmentRallies(shots, 3000)
	res := trackScore(testBuilder(), rallies)

	if len(res.Samples) != 0 || res.Unscored != 0 {
		t.Fatalf("incomplete rally must be ignored entirely: %+v", res)
	}
}
