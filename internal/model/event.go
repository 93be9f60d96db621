package model

import "encoding/json"

// Detail is the event-type-specific payload of a MatchEvent. Exactly one
// variant exists per EventType, so illegal metadata combinations are
// unrepresentable in the domain model; flattening happens only at the JSON
// boundary.
type Detail interface {
	Kind() EventType
}

// PlayOfTheGameDetail describes the rally selected as play of the game.
type PlayOfTheGameDetail struct {
	RallyLength      int
	AvgShotSpeed     float64
	DirectionChanges int
	CompositeScore   float64
}

func (PlayOfTheGameDetail) Kind() EventType { return EventPlayOfTheGame }

// ScoreDetail carries the score progression attached to a scored point.
type ScoreDetail struct {
	ScoringPlayer int
	ScoreAfter    ScoreState
	RallyLength   int
}

func (ScoreDetail) Kind() EventType { return EventScore }

// MissDetail describes the fault that ended a point.
type MissDetail struct {
	FaultingPlayer int
	Result         ShotResult
	ShotSpeed      float64
}

func (MissDetail) Kind() EventType { return EventMiss }

// RallyHighlightDetail describes a top-rally highlight.
type RallyHighlightDetail struct {
	RallyLength    int
	AvgShotSpeed   float64
	CompositeScore float64
}

func (RallyHighlightDetail) Kind() EventType { return EventRallyHighlight }

// ServeAceDetail describes a best-serve highlight.
type ServeAceDetail struct {
	ServeSpeed float64
}

func (ServeAceDetail) Kind() EventType { return EventServeAce }

// FastestShotDetail describes a fastest-shot highlight.
type FastestShotDetail struct {
	ShotSpeed float64
	ShotType  ShotType
}

func (FastestShotDetail) Kind() EventType { return EventFastestShot }

// EventMeta is the shared metadata envelope of a MatchEvent. Type-specific
// fields live in Detail.
type EventMeta struct {
	FrameNumber    int
	Window         EventWindow
	Confidence     float64
	LowConfidence  bool
	Source         string
	BallTrajectory [][]float64
	Detections     []Detection
	Detail         Detail
}

// Event is a materialized match event. Immutable once persisted; ids are
// deterministic per run so identical input reproduces identical documents.
type Event struct {
	ID              string
	Type            EventType
	Title           string
	Description     string
	TimestampMs     int64
	TimestampSeries []int64
	FrameSeries     []int
	Player          int
	Importance      int
	Meta            EventMeta
}

// eventJSON is the wire shape of an Event (§external interfaces). The
// metadata object is flat: the Detail variant's fields are merged into the
// envelope on marshal and split back out on unmarshal.
type eventJSON struct {
	ID              string        `json:"id"`
	Type            EventType     `json:"type"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	TimestampMs     int64         `json:"timestampMs"`
	TimestampSeries []int64       `json:"timestampSeries"`
	FrameSeries     []int         `json:"frameSeries"`
	Player          int           `json:"player"`
	Importance      int           `json:"importance"`
	Metadata        eventMetaJSON `json:"metadata"`
}

type eventMetaJSON struct {
	ShotSpeed        *float64    `json:"shotSpeed,omitempty"`
	RallyLength      *int        `json:"rallyLength,omitempty"`
	ShotType         string      `json:"shotType,omitempty"`
	DirectionChanges *int        `json:"directionChanges,omitempty"`
	CompositeScore   *float64    `json:"compositeScore,omitempty"`
	ScoringPlayer    *int        `json:"scoringPlayer,omitempty"`
	ScoreAfter       *ScoreState `json:"scoreAfter,omitempty"`
	FaultingPlayer   *int        `json:"faultingPlayer,omitempty"`
	Result           string      `json:"result,omitempty"`
	BallTrajectory   [][]float64 `json:"ballTrajectory"`
	FrameNumber      int         `json:"frameNumber"`
	FrameSeries      []int       `json:"frameSeries"`
	EventWindow      EventWindow `json:"eventWindow"`
	Confidence       float64     `json:"confidence"`
	LowConfidence    bool        `json:"lowConfidence"`
	Source           string      `json:"source"`
	Detections       []Detection `json:"detections"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	meta := eventMetaJSON{
		BallTrajectory: e.Meta.BallTrajectory,
		FrameNumber:    e.Meta.FrameNumber,
		FrameSeries:    e.FrameSeries,
		EventWindow:    e.Meta.Window,
		Confidence:     e.Meta.Confidence,
		LowConfidence:  e.Meta.LowConfidence,
		Source:         e.Meta.Source,
		Detections:     e.Meta.Detections,
	}

	switch d := e.Meta.Detail.(type) {
	case PlayOfTheGameDetail:
		meta.RallyLength = intPtr(d.RallyLength)
		meta.ShotSpeed = floatPtr(d.AvgShotSpeed)
		meta.DirectionChanges = intPtr(d.DirectionChanges)
		meta.CompositeScore = floatPtr(d.CompositeScore)
	case ScoreDetail:
		meta.ScoringPlayer = intPtr(d.ScoringPlayer)
		after := d.ScoreAfter
		meta.ScoreAfter = &after
		meta.RallyLength = intPtr(d.RallyLength)
	case MissDetail:
		meta.FaultingPlayer = intPtr(d.FaultingPlayer)
		meta.Result = d.Result.String()
		meta.ShotSpeed = floatPtr(d.ShotSpeed)
	case RallyHighlightDetail:
		meta.RallyLength = intPtr(d.RallyLength)
		meta.ShotSpeed = floatPtr(d.AvgShotSpeed)
		meta.CompositeScore = floatPtr(d.CompositeScore)
	case ServeAceDetail:
		meta.ShotSpeed = floatPtr(d.ServeSpeed)
	case FastestShotDetail:
		meta.ShotSpeed = floatPtr(d.ShotSpeed)
		meta.ShotType = d.ShotType.String()
	}

	return json.Marshal(eventJSON{
		ID:              e.ID,
		Type:            e.Type,
		Title:           e.Title,
		Description:     e.Description,
		TimestampMs:     e.TimestampMs,
		TimestampSeries: e.TimestampSeries,
		FrameSeries:     e.FrameSeries,
		Player:          e.Player,
		Importance:      e.Importance,
		Metadata:        meta,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var wire eventJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	*e = Event{
		ID:              wire.ID,
		Type:            wire.Type,
		Title:           wire.Title,
		Description:     wire.Description,
		TimestampMs:     wire.TimestampMs,
		TimestampSeries: wire.TimestampSeries,
		FrameSeries:     wire.FrameSeries,
		Player:          wire.Player,
		Importance:      wire.Importance,
		Meta: EventMeta{
			FrameNumber:    wire.Metadata.FrameNumber,
			Window:         wire.Metadata.EventWindow,
			Confidence:     wire.Metadata.Confidence,
			LowConfidence:  wire.Metadata.LowConfidence,
			Source:         wire.Metadata.Source,
			BallTrajectory: wire.Metadata.BallTrajectory,
			Detections:     wire.Metadata.Detections,
		},
	}

	m := wire.Metadata
	switch wire.Type {
	case EventPlayOfTheGame:
		e.Meta.Detail = PlayOfTheGameDetail{
			RallyLength:      intVal(m.RallyLength),
			AvgShotSpeed:     floatVal(m.ShotSpeed),
			DirectionChanges: intVal(m.DirectionChanges),
			CompositeScore:   floatVal(m.CompositeScore),
		}
	case EventScore:
		d := ScoreDetail{
			ScoringPlayer: intVal(m.ScoringPlayer),
			RallyLength:   intVal(m.RallyLength),
		}
		if m.ScoreAfter != nil {
			d.ScoreAfter = *m.ScoreAfter
		}
		e.Meta.Detail = d
	case EventMiss:
		e.Meta.Detail = MissDetail{
			FaultingPlayer: intVal(m.FaultingPlayer),
			Result:         ParseShotResult(m.Result),
			ShotSpeed:      floatVal(m.ShotSpeed),
		}
	case EventRallyHighlight:
		e.Meta.Detail = RallyHighlightDetail{
			RallyLength:    intVal(m.RallyLength),
			AvgShotSpeed:   floatVal(m.ShotSpeed),
			CompositeScore: floatVal(m.CompositeScore),
		}
	case EventServeAce:
		e.Meta.Detail = ServeAceDetail{ServeSpeed: floatVal(m.ShotSpeed)}
	case EventFastestShot:
		e.Meta.Detail = FastestShotDetail{
			ShotSpeed: floatVal(m.ShotSpeed),
			ShotType:  ParseShotType(m.ShotType),
		}
	}
	return nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func intVal(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatVal(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
