package engine

import (
	"sort"

	"github.com/allanai/rallymetrics/internal/model"
)

// sortShots orders shots deterministically: primary timestamp, then first
// frame, then player with unattributed shots last. Ties beyond that keep
// input order (stable sort), so identical documents always segment
// identically.
func sortShots(shots []model.Shot) {
	sort.SliceStable(shots, func(i, j int) bool {
		a, b := &shots[i], &shots[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if fa, fb := firstFrame(a), firstFrame(b); fa != fb {
			return fa < fb
		}
		return playerRank(a.Player) < playerRank(b.Player)
	})
}

func firstFrame(s *model.Shot) int {
	if len(s.FrameSeries) == 0 {
		return -1
	}
	return s.FrameSeries[0]
}

// playerRank orders attributed players before player 0 (unknown).
func playerRank(p int) int {
	if p == 0 {
		return 3
	}
	return p
}

// segmentRallies partitions the sorted shot stream into rallies. A rally
// closes on an OUT/NET shot (the terminator), on a silence longer than gapMs,
// or when a new SERVE arrives mid-rally (the model missed the point end).
// The final rally, if still open at end of stream, is marked incomplete.
func segmentRallies(shots []model.Shot, gapMs int64) []model.Rally {
	var rallies []model.Rally
	var cur []model.Shot

	flush := func(terminatorIdx int, complete bool) {
		if len(cur) == 0 {
			return
		}
		r := model.Rally{
			Shots:         cur,
			StartMs:       cur[0].TimestampMs,
			EndMs:         cur[len(cur)-1].TimestampMs,
			TerminatorIdx: terminatorIdx,
			Complete:      complete,
		}
		if cur[0].ShotType == model.ShotServe {
			r.Server = cur[0].Player
		}
		rallies = append(rallies, r)
		cur = nil
	}

	for i := range shots {
		sh := shots[i]
		if len(cur) > 0 {
			if sh.TimestampMs-cur[len(cur)-1].TimestampMs > gapMs {
				flush(-1, true)
			} else if sh.ShotType == model.ShotServe {
				flush(-1, true)
			}
		}
		cur = append(cur, sh)
		if sh.Result.Fault() {
			flush(len(cur)-1, true)
		}
	}
	flush(-1, false)

	return rallies
}
