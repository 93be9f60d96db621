package engine

import "github.com/allanai/rallymetrics/internal/model"

// aggregate recomputes the full statistics block from normalized shots,
// segmented rallies, and the score tracker's outcomes. Producer-reported
// aggregates are never merged in. Every ratio is 0 when its denominator is
// empty; no NaN ever reaches the document.
func aggregate(shots []model.Shot, rallies []model.Rally, score scoreResult) model.MatchStatistics {
	stats := model.MatchStatistics{
		Player1Score:     score.Final.Player1,
		Player2Score:     score.Final.Player2,
		MomentumTimeline: score.Samples,
	}

	stats.RallyMetrics = rallyMetrics(rallies)
	stats.TotalRallies = stats.RallyMetrics.TotalRallies
	stats.ShotSpeedMetrics = shotSpeedMetrics(shots, rallies)
	stats.ServeMetrics = serveMetrics(shots)
	stats.ReturnMetrics = returnMetrics(rallies)
	stats.ShotTypeBreakdown = shotTypeBreakdown(shots)
	stats.PlayerBreakdown = playerBreakdown(shots, rallies, score)

	return stats
}

func rallyMetrics(rallies []model.Rally) model.RallyMetrics {
	var m model.RallyMetrics
	var lengthSum, durSum, speedSum float64
	for i := range rallies {
		r := &rallies[i]
		if !r.Complete {
			continue
		}
		m.TotalRallies++
		lengthSum += float64(r.Length())
		durSum += float64(r.DurationMs())
		speedSum += r.AvgSpeed()
		if r.Length() > m.LongestRallyLength {
			m.LongestRallyLength = r.Length()
		}
		if r.DurationMs() > m.LongestRallyDurationMs {
			m.LongestRallyDurationMs = r.DurationMs()
		}
	}
	if m.TotalRallies > 0 {
		n := float64(m.TotalRallies)
		m.AverageRallyLength = lengthSum / n
		m.AverageRallyDurationMs = durSum / n
		m.AverageRallyShotSpeed = speedSum / n
	}
	return m
}

func shotSpeedMetrics(shots []model.Shot, rallies []model.Rally) model.ShotSpeedMetrics {
	var m model.ShotSpeedMetrics
	var sum float64
	for i := range shots {
		s := &shots[i]
		sum += s.Speed
		if s.Speed > m.FastestShotSpeed {
			m.FastestShotSpeed = s.Speed
		}
	}
	if len(shots) > 0 {
		m.AverageShotSpeed = sum / float64(len(shots))
	}

	// Incoming and outgoing are relative to the rally's server, so both need
	// the server and the shooter to be attributed.
	var inSum, outSum float64
	var inN, outN int
	for i := range rallies {
		r := &rallies[i]
		if r.Server == 0 {
			continue
		}
		for j := range r.Shots {
			s := &r.Shots[j]
			if s.Player == 0 {
				continue
			}
			if s.Player == r.Server {
				outSum += s.Speed
				outN++
			} else {
				inSum += s.Speed
				inN++
			}
		}
	}
	if inN > 0 {
		m.AverageIncomingSpeed = inSum / float64(inN)
	}
	if outN > 0 {
		m.AverageOutgoingSpeed = outSum / float64(outN)
	}
	return m
}

func serveMetrics(shots []model.Shot) model.ServeMetrics {
	var m model.ServeMetrics
	var speedSum float64
	for i := range shots {
		s := &shots[i]
		if s.ShotType != model.ShotServe {
			continue
		}
		m.TotalServes++
		speedSum += s.Speed
		if s.Speed > m.FastestServeSpeed {
			m.FastestServeSpeed = s.Speed
		}
		if s.Result.Fault() {
			m.Faults++
		} else {
			m.SuccessfulServes++
		}
	}
	if m.TotalServes > 0 {
		m.SuccessRate = float64(m.SuccessfulServes) / float64(m.TotalServes)
		m.AverageServeSpeed = speedSum / float64(m.TotalServes)
	}
	return m
}

// returnMetrics covers shots directly answering a serve within a rally.
func returnMetrics(rallies []model.Rally) model.ReturnMetrics {
	var m model.ReturnMetrics
	var speedSum float64
	for i := range rallies {
		r := &rallies[i]
		for j := 1; j < len(r.Shots); j++ {
			if r.Shots[j-1].ShotType != model.ShotServe {
				continue
			}
			s := &r.Shots[j]
			m.TotalReturns++
			speedSum += s.Speed
			if !s.Result.Fault() {
				m.SuccessfulReturns++
			}
		}
	}
	if m.TotalReturns > 0 {
		m.SuccessRate = float64(m.SuccessfulReturns) / float64(m.TotalReturns)
		m.AverageReturnSpeed = speedSum / float64(m.TotalReturns)
	}
	return m
}

func shotTypeBreakdown(shots []model.Shot) []model.ShotTypeBreakdownItem {
	type acc struct {
		count    int
		speedSum float64
		accSum   float64
	}
	byType := make(map[model.ShotType]*acc, len(model.ShotTypes))
	for _, t := range model.ShotTypes {
		byType[t] = &acc{}
	}
	for i := range shots {
		s := &shots[i]
		a := byType[s.ShotType]
		a.count++
		a.speedSum += s.Speed
		a.accSum += s.Accuracy
	}

	items := make([]model.ShotTypeBreakdownItem, 0, len(model.ShotTypes))
	for _, t := range model.ShotTypes {
		a := byType[t]
		item := model.ShotTypeBreakdownItem{ShotType: t, Count: a.count}
		if a.count > 0 {
			item.AverageSpeed = a.speedSum / float64(a.count)
			item.AverageAccuracy = a.accSum / float64(a.count)
		}
		items = append(items, item)
	}
	return items
}

func playerBreakdown(shots []model.Shot, rallies []model.Rally, score scoreResult) []model.PlayerBreakdown {
	rows := map[int]*model.PlayerBreakdown{
		1: {Player: 1},
		2: {Player: 2},
	}
	speedSum := map[int]float64{}
	accSum := map[int]float64{}

	for i := range shots {
		s := &shots[i]
		row, ok := rows[s.Player]
		if !ok {
			continue
		}
		row.TotalShots++
		speedSum[s.Player] += s.Speed
		accSum[s.Player] += s.Accuracy
		if s.ShotType == model.ShotServe {
			row.TotalServes++
			if !s.Result.Fault() {
				row.SuccessfulServes++
			}
		}
	}

	for i := range rallies {
		r := &rallies[i]
		for j := 1; j < len(r.Shots); j++ {
			if r.Shots[j-1].ShotType != model.ShotServe {
				continue
			}
			s := &r.Shots[j]
			if row, ok := rows[s.Player]; ok {
				row.TotalReturns++
				if !s.Result.Fault() {
					row.SuccessfulReturns++
				}
			}
		}
		if term := r.Terminator(); term != nil {
			if row, ok := rows[term.Player]; ok {
				row.Errors++
			}
		}
	}

	for _, o := range score.Outcomes {
		row, ok := rows[o.Scorer]
		if !ok {
			continue
		}
		row.TotalPointsWon++
		if o.Ace {
			row.Winners++
		}
	}

	totalPoints := len(score.Outcomes)
	out := make([]model.PlayerBreakdown, 0, 2)
	for _, p := range []int{1, 2} {
		row := rows[p]
		if row.TotalShots > 0 {
			row.AverageShotSpeed = speedSum[p] / float64(row.TotalShots)
			row.AverageAccuracy = accSum[p] / float64(row.TotalShots)
		}
		if totalPoints > 0 {
			row.PointWinRate = float64(row.TotalPointsWon) / float64(totalPoints)
		}
		if row.TotalServes > 0 {
			row.ServeSuccessRate = float64(row.SuccessfulServes) / float64(row.TotalServes)
		}
		if row.TotalReturns > 0 {
			row.ReturnSuccessRate = float64(row.SuccessfulReturns) / float64(row.TotalReturns)
		}
		out = append(out, *row)
	}
	return out
}
