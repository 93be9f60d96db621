package storage

import (
	"testing"
	"time"

	"github.com/allanai/rallymetrics/internal/model"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDoc(matchID string) *model.MatchDocument {
	return &model.MatchDocument{
		MatchID:     matchID,
		Status:      model.StatusComplete,
		ProcessedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		FPS:         120,
		Events: []model.Event{
			{
				ID: "ev-1", Type: model.EventScore, Title: "Point Scored",
				TimestampMs: 900, Player: 1, Importance: 5,
				Meta: model.EventMeta{Detail: model.ScoreDetail{ScoringPlayer: 1, ScoreAfter: model.ScoreState{Player1: 1}, RallyLength: 3}},
			},
			{
				ID: "ev-2", Type: model.EventPlayOfTheGame, Title: "Play of the Game",
				TimestampMs: 0, Player: 0, Importance: 10,
				Meta: model.EventMeta{Detail: model.PlayOfTheGameDetail{RallyLength: 3, AvgShotSpeed: 48}},
			},
		},
		Shots: []model.Shot{
			{TimestampMs: 0, TimestampSeries: []int64{0}, Player: 1, ShotType: model.ShotServe, Speed: 55, Confidence: 0.9},
		},
		Statistics: model.MatchStatistics{
			Player1Score: 1,
			TotalRallies: 1,
			MomentumTimeline: []model.MomentumSample{
				{TimestampMs: 900, ScoringPlayer: 1, ScoreAfter: model.ScoreState{Player1: 1}, Lead: 1},
			},
		},
		Summary: model.ProcessingSummary{PrimarySource: "MODEL", Sources: []string{"MODEL"}, OK: true},
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	db := openMemDB(t)

	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	exists, err := db.Exists("m1")
	if err != nil || !exists {
		t.Fatalf("Exists: %v %v", exists, err)
	}

	doc, err := db.GetDocument("m1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc == nil || doc.MatchID != "m1" || doc.Statistics.Player1Score != 1 {
		t.Fatalf("document round trip: %+v", doc)
	}
	if len(doc.Events) != 2 {
		t.Fatalf("events round trip: got %d", len(doc.Events))
	}
	if _, ok := doc.Events[0].Meta.Detail.(model.ScoreDetail); !ok {
		t.Fatalf("score detail lost in round trip: %+v", doc.Events[0].Meta.Detail)
	}

	missing, err := db.GetDocument("nope")
	if err != nil || missing != nil {
		t.Fatalf("missing match should yield nil, got %+v %v", missing, err)
	}
}

func TestSaveResultReplacesPreviousRun(t *testing.T) {
	db := openMemDB(t)

	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	next := testDoc("m1")
	next.Events = next.Events[:1]
	next.Statistics.Player1Score = 3
	if err := db.SaveResult(next); err != nil {
		t.Fatalf("SaveResult again: %v", err)
	}

	doc, err := db.GetDocument("m1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Statistics.Player1Score != 3 || len(doc.Events) != 1 {
		t.Fatalf("reprocess must replace the document: %+v", doc)
	}

	events, err := db.ListEvents("m1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("stale event rows survived replace: %d", len(events))
	}
}

func TestMarkProcessingAndFailed(t *testing.T) {
	db := openMemDB(t)

	if err := db.MarkProcessing("m1", "MODEL"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	s, err := db.GetSummary("m1")
	if err != nil || s == nil {
		t.Fatalf("GetSummary: %+v %v", s, err)
	}
	if s.Status != model.StatusProcessing {
		t.Fatalf("status: got %s", s.Status)
	}

	if err := db.MarkFailed("m1", "detector produced no shot events"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	s, _ = db.GetSummary("m1")
	if s.Status != model.StatusFailed || s.FailureReason == "" {
		t.Fatalf("failed state: %+v", s)
	}

	if err := db.MarkProcessing("m1", "MODEL"); err != nil {
		t.Fatalf("MarkProcessing again: %v", err)
	}
	s, _ = db.GetSummary("m1")
	if s.FailureReason != "" {
		t.Fatal("retry must clear the failure reason")
	}
}

func TestListMatchesFiltered(t *testing.T) {
	db := openMemDB(t)

	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkFailed("m2", "boom"); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListMatches(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d matches, want 2", len(all))
	}

	complete, err := db.ListMatches(ListFilter{Status: model.StatusComplete.String()})
	if err != nil {
		t.Fatal(err)
	}
	if len(complete) != 1 || complete[0].MatchID != "m1" {
		t.Fatalf("status filter: %+v", complete)
	}

	limited, err := db.ListMatches(ListFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit: got %d", len(limited))
	}
}

func TestListEventsByImportance(t *testing.T) {
	db := openMemDB(t)
	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatal(err)
	}

	rows, err := db.ListEvents("m1", 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Type != "PLAY_OF_THE_GAME" {
		t.Fatalf("importance filter: %+v", rows)
	}

	all, err := db.ListEvents("m1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].TimestampMs > all[1].TimestampMs {
		t.Fatalf("timeline order: %+v", all)
	}
}

func TestMomentumRoundTrip(t *testing.T) {
	db := openMemDB(t)
	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatal(err)
	}

	samples, err := db.GetMomentum("m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].ScoreAfter.Player1 != 1 || samples[0].Lead != 1 {
		t.Fatalf("momentum round trip: %+v", samples)
	}
}

func TestDelete(t *testing.T) {
	db := openMemDB(t)
	if err := db.SaveResult(testDoc("m1")); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete("m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := db.Exists("m1")
	if err != nil || exists {
		t.Fatalf("match should be gone: %v %v", exists, err)
	}
	events, err := db.ListEvents("m1", 0)
	if err != nil || len(events) != 0 {
		t.Fatalf("event rows should be gone: %+v %v", events, err)
	}
}
