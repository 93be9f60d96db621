package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ShotType classifies how a shot was struck. Order is the canonical
// breakdown order for aggregate output.
type ShotType int

const (
	ShotServe ShotType = iota
	ShotForehand
	ShotBackhand
	ShotUnknown
)

// ShotTypes lists all shot types in breakdown order.
var ShotTypes = []ShotType{ShotServe, ShotForehand, ShotBackhand, ShotUnknown}

func (t ShotType) String() string {
	switch t {
	case ShotServe:
		return "SERVE"
	case ShotForehand:
		return "FOREHAND"
	case ShotBackhand:
		return "BACKHAND"
	default:
		return "UNKNOWN"
	}
}

func (t ShotType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ShotType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseShotType(s)
	return nil
}

// ParseShotType maps a producer or stored label to a ShotType. Labels the
// producer emits for strokes outside the canonical set (smash, lob, ...)
// collapse to FOREHAND; anything unrecognized is UNKNOWN.
func ParseShotType(s string) ShotType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SERVE":
		return ShotServe
	case "FOREHAND", "SMASH", "LOB":
		return ShotForehand
	case "BACKHAND":
		return ShotBackhand
	default:
		return ShotUnknown
	}
}

// ShotResult is the outcome of a single shot.
type ShotResult int

const (
	ResultIn ShotResult = iota
	ResultOut
	ResultNet
)

func (r ShotResult) String() string {
	switch r {
	case ResultOut:
		return "OUT"
	case ResultNet:
		return "NET"
	default:
		return "IN"
	}
}

func (r ShotResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ShotResult) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseShotResult(s)
	return nil
}

// ParseShotResult maps a producer or stored label to a ShotResult.
// Unrecognized labels default to IN; the producer only marks faults.
func ParseShotResult(s string) ShotResult {
	up := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(up, "OUT"):
		return ResultOut
	case strings.Contains(up, "NET"):
		return ResultNet
	default:
		return ResultIn
	}
}

// Fault reports whether the result ends the point against the shooter.
func (r ShotResult) Fault() bool {
	return r == ResultOut || r == ResultNet
}

// EventType enumerates the match event kinds emitted by the pipeline.
type EventType int

const (
	EventPlayOfTheGame EventType = iota
	EventScore
	EventMiss
	EventRallyHighlight
	EventServeAce
	EventFastestShot
)

func (t EventType) String() string {
	switch t {
	case EventPlayOfTheGame:
		return "PLAY_OF_THE_GAME"
	case EventScore:
		return "SCORE"
	case EventMiss:
		return "MISS"
	case EventRallyHighlight:
		return "RALLY_HIGHLIGHT"
	case EventServeAce:
		return "SERVE_ACE"
	default:
		return "FASTEST_SHOT"
	}
}

func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseEventType(s)
	return nil
}

// ParseEventType maps a stored label to an EventType.
func ParseEventType(s string) EventType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SCORE":
		return EventScore
	case "MISS":
		return EventMiss
	case "RALLY_HIGHLIGHT":
		return EventRallyHighlight
	case "SERVE_ACE":
		return EventServeAce
	case "FASTEST_SHOT":
		return EventFastestShot
	default:
		return EventPlayOfTheGame
	}
}

// MatchStatus is the lifecycle state of a match document.
type MatchStatus int

const (
	StatusUploaded MatchStatus = iota
	StatusProcessing
	StatusComplete
	StatusFailed
)

func (s MatchStatus) String() string {
	switch s {
	case StatusProcessing:
		return "PROCESSING"
	case StatusComplete:
		return "COMPLETE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UPLOADED"
	}
}

func (s MatchStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *MatchStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = ParseMatchStatus(str)
	return nil
}

// ParseMatchStatus maps a stored status string back to its enum value.
func ParseMatchStatus(s string) MatchStatus {
	switch s {
	case "PROCESSING":
		return StatusProcessing
	case "COMPLETE":
		return StatusComplete
	case "FAILED":
		return StatusFailed
	default:
		return StatusUploaded
	}
}

// Detection is one ball bounding box reported by the producer. Read-only to
// the engine.
type Detection struct {
	FrameNumber int     `json:"frameNumber"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
}

// Shot is a normalized shot event. TimestampSeries is ascending, deduplicated,
// and always contains TimestampMs. Player 0 means unknown attribution.
type Shot struct {
	TimestampMs     int64       `json:"timestampMs"`
	TimestampSeries []int64     `json:"timestampSeries"`
	FrameSeries     []int       `json:"frameSeries"`
	Player          int         `json:"player"`
	ShotType        ShotType    `json:"shotType"`
	Speed           float64     `json:"speed"`
	Accuracy        float64     `json:"accuracy"`
	Result          ShotResult  `json:"result"`
	Confidence      float64     `json:"confidence"`
	Detections      []Detection `json:"detections"`
}

// Opponent returns the other player, or 0 when the player is unknown.
func Opponent(player int) int {
	switch player {
	case 1:
		return 2
	case 2:
		return 1
	default:
		return 0
	}
}

// Rally is an ordered, non-empty run of shots belonging to one point.
type Rally struct {
	Shots   []Shot
	StartMs int64
	EndMs   int64

	// TerminatorIdx indexes the shot whose OUT/NET result decided the point,
	// or -1 when the rally ended implicitly (gap, serve boundary, or end of
	// stream).
	TerminatorIdx int

	// Complete is false only for the dangling rally at end of stream.
	Complete bool

	// Server is the player who opened the rally, 0 if unknown.
	Server int
}

// Length is the shot count of the rally.
func (r *Rally) Length() int { return len(r.Shots) }

// Terminator returns the terminating shot, or nil for implicitly ended
// rallies.
func (r *Rally) Terminator() *Shot {
	if r.TerminatorIdx < 0 || r.TerminatorIdx >= len(r.Shots) {
		return nil
	}
	return &r.Shots[r.TerminatorIdx]
}

// DurationMs is the span between the rally's first and last shot.
func (r *Rally) DurationMs() int64 { return r.EndMs - r.StartMs }

// AvgSpeed is the mean shot speed over the rally, 0 for an empty rally.
func (r *Rally) AvgSpeed() float64 {
	if len(r.Shots) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.Shots {
		sum += s.Speed
	}
	return sum / float64(len(r.Shots))
}

// ScoreState is a cumulative score pair.
type ScoreState struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// Lead is the signed player-1 lead.
func (s ScoreState) Lead() int { return s.Player1 - s.Player2 }

// MomentumSample is one point of the momentum timeline: exactly one sample
// per scored rally, ordered by timestamp.
type MomentumSample struct {
	TimestampMs   int64      `json:"timestampMs"`
	ScoringPlayer int        `json:"scoringPlayer"`
	ScoreAfter    ScoreState `json:"scoreAfter"`
	Lead          int        `json:"lead"`
}

// EventWindow is the replay window around an event, in milliseconds.
type EventWindow struct {
	PreMs  int64 `json:"preMs"`
	PostMs int64 `json:"postMs"`
}

// HighlightRef points a consumer at a materialized event without owning it.
type HighlightRef struct {
	EventID         string  `json:"eventId"`
	TimestampMs     int64   `json:"timestampMs"`
	TimestampSeries []int64 `json:"timestampSeries"`
}

// Highlights are the bounded highlight sets of a match.
type Highlights struct {
	PlayOfTheGame *HighlightRef  `json:"playOfTheGame"`
	TopRallies    []HighlightRef `json:"topRallies"`
	FastestShots  []HighlightRef `json:"fastestShots"`
	BestServes    []HighlightRef `json:"bestServes"`
}

// ProcessingSummary records provenance for a completed run.
type ProcessingSummary struct {
	PrimarySource string   `json:"primarySource"`
	Sources       []string `json:"sources"`
	Notes         []string `json:"notes"`
	OK            bool     `json:"ok"`
}

// RallyMetrics aggregates completed rallies only.
type RallyMetrics struct {
	TotalRallies           int     `json:"totalRallies"`
	AverageRallyLength     float64 `json:"averageRallyLength"`
	LongestRallyLength     int     `json:"longestRallyLength"`
	AverageRallyDurationMs float64 `json:"averageRallyDurationMs"`
	LongestRallyDurationMs int64   `json:"longestRallyDurationMs"`
	AverageRallyShotSpeed  float64 `json:"averageRallyShotSpeed"`
}

// ShotSpeedMetrics aggregates shot speeds across all shots. Incoming and
// outgoing are relative to the serving player of each shot's rally.
type ShotSpeedMetrics struct {
	FastestShotSpeed     float64 `json:"fastestShotSpeed"`
	AverageShotSpeed     float64 `json:"averageShotSpeed"`
	AverageIncomingSpeed float64 `json:"averageIncomingSpeed"`
	AverageOutgoingSpeed float64 `json:"averageOutgoingSpeed"`
}

// ServeMetrics aggregates serve shots.
type ServeMetrics struct {
	TotalServes       int     `json:"totalServes"`
	SuccessfulServes  int     `json:"successfulServes"`
	Faults            int     `json:"faults"`
	SuccessRate       float64 `json:"successRate"`
	AverageServeSpeed float64 `json:"averageServeSpeed"`
	FastestServeSpeed float64 `json:"fastestServeSpeed"`
}

// ReturnMetrics aggregates shots answering a serve.
type ReturnMetrics struct {
	TotalReturns       int     `json:"totalReturns"`
	SuccessfulReturns  int     `json:"successfulReturns"`
	SuccessRate        float64 `json:"successRate"`
	AverageReturnSpeed float64 `json:"averageReturnSpeed"`
}

// ShotTypeBreakdownItem is one row of the per-shot-type rollup.
type ShotTypeBreakdownItem struct {
	ShotType        ShotType `json:"shotType"`
	Count           int      `json:"count"`
	AverageSpeed    float64  `json:"averageSpeed"`
	AverageAccuracy float64  `json:"averageAccuracy"`
}

// PlayerBreakdown is one row of the per-player rollup.
type PlayerBreakdown struct {
	Player            int     `json:"player"`
	TotalPointsWon    int     `json:"totalPointsWon"`
	TotalShots        int     `json:"totalShots"`
	TotalServes       int     `json:"totalServes"`
	SuccessfulServes  int     `json:"successfulServes"`
	TotalReturns      int     `json:"totalReturns"`
	SuccessfulReturns int     `json:"successfulReturns"`
	Winners           int     `json:"winners"`
	Errors            int     `json:"errors"`
	AverageShotSpeed  float64 `json:"averageShotSpeed"`
	AverageAccuracy   float64 `json:"averageAccuracy"`
	PointWinRate      float64 `json:"pointWinRate"`
	ServeSuccessRate  float64 `json:"serveSuccessRate"`
	ReturnSuccessRate float64 `json:"returnSuccessRate"`
}

// MatchStatistics is the derived aggregate block of the match document.
// Regenerated wholesale on every processing run, never edited.
type MatchStatistics struct {
	Player1Score      int                     `json:"player1Score"`
	Player2Score      int                     `json:"player2Score"`
	TotalRallies      int                     `json:"totalRallies"`
	RallyMetrics      RallyMetrics            `json:"rallyMetrics"`
	ShotSpeedMetrics  ShotSpeedMetrics        `json:"shotSpeedMetrics"`
	ServeMetrics      ServeMetrics            `json:"serveMetrics"`
	ReturnMetrics     ReturnMetrics           `json:"returnMetrics"`
	ShotTypeBreakdown []ShotTypeBreakdownItem `json:"shotTypeBreakdown"`
	PlayerBreakdown   []PlayerBreakdown       `json:"playerBreakdown"`
	MomentumTimeline  []MomentumSample        `json:"momentumTimeline"`
}

// MatchDocument is the persisted, queryable output of one processing run.
// A reprocess replaces the whole document atomically.
type MatchDocument struct {
	MatchID     string            `json:"matchId"`
	Status      MatchStatus       `json:"status"`
	ProcessedAt time.Time         `json:"processedAt"`
	FPS         float64           `json:"fps"`
	Events      []Event           `json:"events"`
	Shots       []Shot            `json:"shots"`
	Statistics  MatchStatistics   `json:"statistics"`
	Highlights  Highlights        `json:"highlights"`
	Summary     ProcessingSummary `json:"processingSummary"`
}

// MatchSummary is a lightweight record for list commands and the HTTP index.
type MatchSummary struct {
	MatchID       string
	Status        MatchStatus
	Source        string
	ProcessedAt   string
	Player1Score  int
	Player2Score  int
	TotalRallies  int
	FailureReason string
}
