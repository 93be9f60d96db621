package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/allanai/rallymetrics/internal/model"
)

// Exists reports whether any record for the match is stored.
func (db *DB) Exists(matchID string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(1) FROM matches WHERE match_id = ?", matchID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkProcessing records that a run for the match has started. Any previous
// failure reason is cleared; the stored document, if any, stays readable
// until the run replaces it.
func (db *DB) MarkProcessing(matchID, source string) error {
	_, err := db.conn.Exec(`
		INSERT INTO matches(match_id, status, source)
		VALUES (?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET status = excluded.status,
			source = excluded.source, failure_reason = ''`,
		matchID, model.StatusProcessing.String(), source)
	return err
}

// MarkFailed records a terminal failure for the match.
func (db *DB) MarkFailed(matchID, reason string) error {
	_, err := db.conn.Exec(`
		INSERT INTO matches(match_id, status, failure_reason)
		VALUES (?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET status = excluded.status,
			failure_reason = excluded.failure_reason`,
		matchID, model.StatusFailed.String(), reason)
	return err
}

// SaveResult replaces the match's stored state with the given document in a
// single transaction: summary row, document JSON, event rows, momentum rows.
func (db *DB) SaveResult(doc *model.MatchDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO matches(
			match_id, status, source, fps, processed_at,
			player1_score, player2_score, total_rallies, failure_reason, document
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		doc.MatchID, doc.Status.String(), doc.Summary.PrimarySource, doc.FPS,
		doc.ProcessedAt.Format(time.RFC3339),
		doc.Statistics.Player1Score, doc.Statistics.Player2Score,
		doc.Statistics.TotalRallies, "", string(raw))
	if err != nil {
		return fmt.Errorf("insert match %s: %w", doc.MatchID, err)
	}

	if _, err := tx.Exec("DELETE FROM match_events WHERE match_id = ?", doc.MatchID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM momentum_samples WHERE match_id = ?", doc.MatchID); err != nil {
		return err
	}

	evStmt, err := tx.Prepare(`
		INSERT INTO match_events(id, match_id, type, title, timestamp_ms, player, importance)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer evStmt.Close()
	for _, ev := range doc.Events {
		if _, err := evStmt.Exec(ev.ID, doc.MatchID, ev.Type.String(), ev.Title,
			ev.TimestampMs, ev.Player, ev.Importance); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}

	moStmt, err := tx.Prepare(`
		INSERT INTO momentum_samples(match_id, seq, timestamp_ms, scoring_player, player1, player2, lead)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer moStmt.Close()
	for i, s := range doc.Statistics.MomentumTimeline {
		if _, err := moStmt.Exec(doc.MatchID, i, s.TimestampMs, s.ScoringPlayer,
			s.ScoreAfter.Player1, s.ScoreAfter.Player2, s.Lead); err != nil {
			return fmt.Errorf("insert momentum sample %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetDocument returns the stored match document, or nil when the match has
// no completed document.
func (db *DB) GetDocument(matchID string) (*model.MatchDocument, error) {
	var raw string
	err := db.conn.QueryRow("SELECT document FROM matches WHERE match_id = ?", matchID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var doc model.MatchDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", matchID, err)
	}
	return &doc, nil
}

// GetSummary returns the match's summary row, or nil when unknown.
func (db *DB) GetSummary(matchID string) (*model.MatchSummary, error) {
	var s model.MatchSummary
	var status string
	err := db.conn.QueryRow(`
		SELECT match_id, status, source, processed_at,
		       player1_score, player2_score, total_rallies, failure_reason
		FROM matches WHERE match_id = ?`, matchID).
		Scan(&s.MatchID, &status, &s.Source, &s.ProcessedAt,
			&s.Player1Score, &s.Player2Score, &s.TotalRallies, &s.FailureReason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = model.ParseMatchStatus(status)
	return &s, nil
}

// ListFilter narrows ListMatches. Zero values mean no constraint.
type ListFilter struct {
	Status string
	Source string
	Limit  uint64
}

// ListMatches returns summary rows, newest first.
func (db *DB) ListMatches(f ListFilter) ([]model.MatchSummary, error) {
	q := sq.Select("match_id", "status", "source", "processed_at",
		"player1_score", "player2_score", "total_rallies", "failure_reason").
		From("matches").
		OrderBy("processed_at DESC, match_id ASC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Source != "" {
		q = q.Where(sq.Eq{"source": f.Source})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MatchSummary
	for rows.Next() {
		var s model.MatchSummary
		var status string
		if err := rows.Scan(&s.MatchID, &status, &s.Source, &s.ProcessedAt,
			&s.Player1Score, &s.Player2Score, &s.TotalRallies, &s.FailureReason); err != nil {
			return nil, err
		}
		s.Status = model.ParseMatchStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// EventRow is the queryable projection of a stored event.
type EventRow struct {
	ID          string
	Type        string
	Title       string
	TimestampMs int64
	Player      int
	Importance  int
}

// ListEvents returns the match's event rows in timeline order, optionally
// keeping only events at or above a minimum importance.
func (db *DB) ListEvents(matchID string, minImportance int) ([]EventRow, error) {
	q := sq.Select("id", "type", "title", "timestamp_ms", "player", "importance").
		From("match_events").
		Where(sq.Eq{"match_id": matchID}).
		OrderBy("timestamp_ms ASC, importance DESC, id ASC")
	if minImportance > 0 {
		q = q.Where(sq.GtOrEq{"importance": minImportance})
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Title, &r.TimestampMs, &r.Player, &r.Importance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetMomentum returns the match's momentum timeline in order.
func (db *DB) GetMomentum(matchID string) ([]model.MomentumSample, error) {
	rows, err := db.conn.Query(`
		SELECT timestamp_ms, scoring_player, player1, player2, lead
		FROM momentum_samples WHERE match_id = ? ORDER BY seq ASC`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MomentumSample
	for rows.Next() {
		var s model.MomentumSample
		if err := rows.Scan(&s.TimestampMs, &s.ScoringPlayer,
			&s.ScoreAfter.Player1, &s.ScoreAfter.Player2, &s.Lead); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes the match and all its rows.
func (db *DB) Delete(matchID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"match_events", "momentum_samples", "matches"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE match_id = ?", matchID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}
