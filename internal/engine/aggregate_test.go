package engine

import (
	"math"
	"testing"

	"github.com/allanai/rallymetrics/internal/model"
)

func TestAggregateEmptyInputYieldsZeros(t *testing.T) {
	stats := aggregate(nil, nil, scoreResult{})

	if stats.TotalRallies != 0 || stats.Player1Score != 0 {
		t.Fatalf("empty aggregate: %+v", stats)
	}
	for _, v := range []float64{
		stats.RallyMetrics.AverageRallyLength,
		stats.ShotSpeedMetrics.AverageShotSpeed,
		stats.ServeMetrics.SuccessRate,
		stats.ReturnMetrics.SuccessRate,
	} {
		if math.IsNaN(v) || v != 0 {
			t.Fatalf("empty denominators must yield 0, got %v", v)
		}
	}
	if len(stats.ShotTypeBreakdown) != len(model.ShotTypes) {
		t.Fatalf("breakdown must list every shot type, got %d rows", len(stats.ShotTypeBreakdown))
	}
	if len(stats.PlayerBreakdown) != 2 {
		t.Fatalf("player breakdown must list both players, got %d rows", len(stats.PlayerBreakdown))
	}
}

func TestAggregateRallyMetricsSkipIncomplete(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(1000, 2, model.ShotForehand, model.ResultOut),
		shot(2000, 2, model.ShotServe, model.ResultIn),
		shot(2500, 1, model.ShotForehand, model.ResultIn),
	}
	rallies := segmentRallies(shots, 3000)
	stats := aggregate(shots, rallies, scoreResult{})

	if stats.TotalRallies != 1 {
		t.Fatalf("incomplete rally must not count, got %d", stats.TotalRallies)
	}
	if stats.RallyMetrics.LongestRallyDurationMs != 1000 {
		t.Fatalf("longest duration: got %d, want 1000", stats.RallyMetrics.LongestRallyDurationMs)
	}
}

func TestAggregateServeAndReturnMetrics(t *testing.T) {
	serve := shot(0, 1, model.ShotServe, model.ResultIn)
	serve.Speed = 60
	ret := shot(400, 2, model.ShotBackhand, model.ResultIn)
	ret.Speed = 50
	fault := shot(10000, 1, model.ShotServe, model.ResultNet)
	fault.Speed = 70

	shots := []model.Shot{serve, ret, fault}
	rallies := segmentRallies(shots, 3000)
	stats := aggregate(shots, rallies, scoreResult{})

	sm := stats.ServeMetrics
	if sm.TotalServes != 2 || sm.SuccessfulServes != 1 || sm.Faults != 1 {
		t.Fatalf("serve counts: %+v", sm)
	}
	if sm.SuccessRate != 0.5 || sm.FastestServeSpeed != 70 || sm.AverageServeSpeed != 65 {
		t.Fatalf("serve rates: %+v", sm)
	}

	rm := stats.ReturnMetrics
	if rm.TotalReturns != 1 || rm.SuccessfulReturns != 1 || rm.AverageReturnSpeed != 50 {
		t.Fatalf("return metrics: %+v", rm)
	}
}

func TestAggregateIncomingOutgoingRelativeToServer(t *testing.T) {
	serve := shot(0, 1, model.ShotServe, model.ResultIn)
	serve.Speed = 60
	back := shot(400, 2, model.ShotBackhand, model.ResultIn)
	back.Speed = 40
	again := shot(800, 1, model.ShotForehand, model.ResultOut)
	again.Speed = 80

	shots := []model.Shot{serve, back, again}
	rallies := segmentRallies(shots, 3000)
	stats := aggregate(shots, rallies, scoreResult{})

	if got := stats.ShotSpeedMetrics.AverageOutgoingSpeed; got != 70 {
		t.Fatalf("outgoing (server side): got %v, want 70", got)
	}
	if got := stats.ShotSpeedMetrics.AverageIncomingSpeed; got != 40 {
		t.Fatalf("incoming: got %v, want 40", got)
	}
}

func TestAggregatePlayerBreakdown(t *testing.T) {
	shots := []model.Shot{
		shot(0, 1, model.ShotServe, model.ResultIn),
		shot(400, 2, model.ShotForehand, model.ResultOut),
		shot(10000, 1, model.ShotServe, model.ResultIn),
		shot(20000, 2, model.ShotServe, model.ResultIn),
	}
	rallies := segmentRallies(shots, 3000)
	score := trackScore(testBuilder(), rallies)
	stats := aggregate(shots, rallies, score)

	p1 := stats.PlayerBreakdown[0]
	if p1.Player != 1 || p1.TotalPointsWon != 2 || p1.TotalServes != 2 {
		t.Fatalf("player 1 row: %+v", p1)
	}
	if p1.Winners != 1 {
		t.Fatalf("ace should count as a winner: %+v", p1)
	}
	if p1.PointWinRate != 1 {
		t.Fatalf("point win rate: got %v, want 1", p1.PointWinRate)
	}

	p2 := stats.PlayerBreakdown[1]
	if p2.Errors != 1 || p2.TotalReturns != 1 || p2.SuccessfulReturns != 0 {
		t.Fatalf("player 2 row: %+v", p2)
	}
	if p2.ReturnSuccessRate != 0 {
		t.Fatalf("return success rate: got %v, want 0", p2.ReturnSuccessRate)
	}
}
