// Package report renders match documents as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/allanai/rallymetrics/internal/model"
	"github.com/allanai/rallymetrics/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintMatchSummary prints a one-line header for the match.
func PrintMatchSummary(w io.Writer, s model.MatchSummary) {
	fmt.Fprintf(w, "\nMatch: %s  |  Status: %s  |  Source: %s  |  Score: %d – %d  |  Rallies: %d\n\n",
		s.MatchID, s.Status, s.Source, s.Player1Score, s.Player2Score, s.TotalRallies)
	if s.FailureReason != "" {
		fmt.Fprintf(w, "Failure: %s\n\n", s.FailureReason)
	}
}

// PrintMatchList prints the stored matches, newest first.
func PrintMatchList(w io.Writer, matches []model.MatchSummary) {
	table := newTable(w)
	table.Header("MATCH", "STATUS", "SOURCE", "PROCESSED", "SCORE", "RALLIES")
	for _, s := range matches {
		table.Append(
			s.MatchID,
			s.Status.String(),
			s.Source,
			s.ProcessedAt,
			fmt.Sprintf("%d-%d", s.Player1Score, s.Player2Score),
			strconv.Itoa(s.TotalRallies),
		)
	}
	table.Render()
}

// PrintStatistics prints the rally, speed, serve and return blocks.
func PrintStatistics(w io.Writer, st *model.MatchStatistics) {
	table := newTable(w)
	table.Header("RALLIES", "AVG_LEN", "MAX_LEN", "AVG_DUR", "MAX_DUR", "AVG_SPEED")
	rm := st.RallyMetrics
	table.Append(
		strconv.Itoa(rm.TotalRallies),
		fmt.Sprintf("%.1f", rm.AverageRallyLength),
		strconv.Itoa(rm.LongestRallyLength),
		fmt.Sprintf("%.0fms", rm.AverageRallyDurationMs),
		fmt.Sprintf("%dms", rm.LongestRallyDurationMs),
		fmt.Sprintf("%.1f", rm.AverageRallyShotSpeed),
	)
	table.Render()

	table = newTable(w)
	table.Header("FASTEST", "AVG", "AVG_IN", "AVG_OUT")
	sm := st.ShotSpeedMetrics
	table.Append(
		fmt.Sprintf("%.1f", sm.FastestShotSpeed),
		fmt.Sprintf("%.1f", sm.AverageShotSpeed),
		fmt.Sprintf("%.1f", sm.AverageIncomingSpeed),
		fmt.Sprintf("%.1f", sm.AverageOutgoingSpeed),
	)
	table.Render()

	table = newTable(w)
	table.Header("SERVES", "IN", "FAULTS", "SERVE%", "AVG_SPEED", "FASTEST", "RETURNS", "RET_IN", "RET%")
	sv, rt := st.ServeMetrics, st.ReturnMetrics
	table.Append(
		strconv.Itoa(sv.TotalServes),
		strconv.Itoa(sv.SuccessfulServes),
		strconv.Itoa(sv.Faults),
		fmt.Sprintf("%.0f%%", sv.SuccessRate*100),
		fmt.Sprintf("%.1f", sv.AverageServeSpeed),
		fmt.Sprintf("%.1f", sv.FastestServeSpeed),
		strconv.Itoa(rt.TotalReturns),
		strconv.Itoa(rt.SuccessfulReturns),
		fmt.Sprintf("%.0f%%", rt.SuccessRate*100),
	)
	table.Render()
}

// PrintPlayerTable prints the per-player breakdown.
func PrintPlayerTable(w io.Writer, rows []model.PlayerBreakdown) {
	table := newTable(w)
	table.Header("PLAYER", "PTS", "WIN%", "SHOTS", "SERVES", "SRV%", "RETURNS", "RET%",
		"WINNERS", "ERRORS", "AVG_SPEED", "AVG_ACC")
	for _, p := range rows {
		table.Append(
			strconv.Itoa(p.Player),
			strconv.Itoa(p.TotalPointsWon),
			fmt.Sprintf("%.0f%%", p.PointWinRate*100),
			strconv.Itoa(p.TotalShots),
			strconv.Itoa(p.TotalServes),
			fmt.Sprintf("%.0f%%", p.ServeSuccessRate*100),
			strconv.Itoa(p.TotalReturns),
			fmt.Sprintf("%.0f%%", p.ReturnSuccessRate*100),
			strconv.Itoa(p.Winners),
			strconv.Itoa(p.Errors),
			fmt.Sprintf("%.1f", p.AverageShotSpeed),
			fmt.Sprintf("%.1f", p.AverageAccuracy),
		)
	}
	table.Render()
}

// PrintShotTypeTable prints the per-shot-type rollup.
func PrintShotTypeTable(w io.Writer, rows []model.ShotTypeBreakdownItem) {
	table := newTable(w)
	table.Header("SHOT_TYPE", "COUNT", "AVG_SPEED", "AVG_ACC")
	for _, it := range rows {
		speed, acc := "—", "—"
		if it.Count > 0 {
			speed = fmt.Sprintf("%.1f", it.AverageSpeed)
			acc = fmt.Sprintf("%.1f", it.AverageAccuracy)
		}
		table.Append(it.ShotType.String(), strconv.Itoa(it.Count), speed, acc)
	}
	table.Render()
}

// PrintHighlights prints the highlight references of a document, matched back
// to their events for titles.
func PrintHighlights(w io.Writer, doc *model.MatchDocument) {
	byID := make(map[string]*model.Event, len(doc.Events))
	for i := range doc.Events {
		byID[doc.Events[i].ID] = &doc.Events[i]
	}

	table := newTable(w)
	table.Header("KIND", "TITLE", "TS", "PLAYER", "IMP", "DESCRIPTION")
	appendRef := func(kind string, ref model.HighlightRef) {
		ev, ok := byID[ref.EventID]
		if !ok {
			return
		}
		table.Append(kind, ev.Title, fmt.Sprintf("%dms", ev.TimestampMs),
			strconv.Itoa(ev.Player), strconv.Itoa(ev.Importance), ev.Description)
	}

	if doc.Highlights.PlayOfTheGame != nil {
		appendRef("POTG", *doc.Highlights.PlayOfTheGame)
	}
	for _, ref := range doc.Highlights.TopRallies {
		appendRef("RALLY", ref)
	}
	for _, ref := range doc.Highlights.FastestShots {
		appendRef("SHOT", ref)
	}
	for _, ref := range doc.Highlights.BestServes {
		appendRef("SERVE", ref)
	}
	table.Render()
}

// PrintTimeline prints stored event rows in timeline order.
func PrintTimeline(w io.Writer, rows []storage.EventRow) {
	table := newTable(w)
	table.Header("TS", "TYPE", "TITLE", "PLAYER", "IMP")
	for _, r := range rows {
		table.Append(
			fmt.Sprintf("%dms", r.TimestampMs),
			r.Type,
			r.Title,
			strconv.Itoa(r.Player),
			strconv.Itoa(r.Importance),
		)
	}
	table.Render()
}

// PrintMomentum prints the score progression.
func PrintMomentum(w io.Writer, samples []model.MomentumSample) {
	table := newTable(w)
	table.Header("TS", "SCORER", "SCORE", "LEAD")
	for _, s := range samples {
		table.Append(
			fmt.Sprintf("%dms", s.TimestampMs),
			strconv.Itoa(s.ScoringPlayer),
			fmt.Sprintf("%d-%d", s.ScoreAfter.Player1, s.ScoreAfter.Player2),
			strconv.Itoa(s.Lead),
		)
	}
	table.Render()
}

// PrintNotes prints processing summary notes.
func PrintNotes(w io.Writer, sum model.ProcessingSummary) {
	if len(sum.Notes) == 0 {
		return
	}
	fmt.Fprintln(w, "Notes:")
	for _, n := range sum.Notes {
		fmt.Fprintf(w, "  - %s\n", n)
	}
	fmt.Fprintln(w)
}
