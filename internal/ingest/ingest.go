// Package ingest decodes and validates the detection document produced by
// the external model for one match. The engine never corrects producer
// output; structurally incomplete documents are rejected here or by the
// pipeline, never patched.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrEmptyInput is returned when the producer supplied neither events
	// nor shots.
	ErrEmptyInput = errors.New("detector produced no shot events")

	// ErrInvalidField is wrapped by field-level validation failures.
	ErrInvalidField = errors.New("invalid field")
)

// Detection mirrors the producer's per-frame ball bounding box.
type Detection struct {
	FrameNumber int     `json:"frameNumber"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Confidence  float64 `json:"confidence"`
}

// Timing is the timestamp/frame shape shared by raw events and shots.
// Pointer fields distinguish absent from zero.
type Timing struct {
	Frame           *int64    `json:"frame"`
	TimestampMs     *float64  `json:"timestampMs"`
	TimestampSeries []float64 `json:"timestampSeries"`
	FrameSeries     []int     `json:"frameSeries"`
}

// Event is one raw model event.
type Event struct {
	Timing
	Type            string      `json:"type"`
	Label           string      `json:"label"`
	Confidence      float64     `json:"confidence"`
	Player          *int        `json:"player"`
	RallyLength     *int        `json:"rallyLength"`
	ShotSpeed       *float64    `json:"shotSpeed"`
	ShotType        string      `json:"shotType"`
	BallTrajectory  [][]float64 `json:"ballTrajectory"`
	PreEventFrames  *int        `json:"preEventFrames"`
	PostEventFrames *int        `json:"postEventFrames"`
	Detections      []Detection `json:"detections"`
}

// Shot is one raw model shot.
type Shot struct {
	Timing
	Player     *int        `json:"player"`
	Speed      *float64    `json:"speed"`
	Accuracy   *float64    `json:"accuracy"`
	ShotType   string      `json:"shotType"`
	Result     string      `json:"result"`
	Confidence float64     `json:"confidence"`
	Detections []Detection `json:"detections"`
}

// Statistics is the producer's own aggregate block. It is a consistency
// cross-check only; the engine recomputes everything from events and shots.
type Statistics struct {
	Player1Score    *int     `json:"player1Score"`
	Player2Score    *int     `json:"player2Score"`
	TotalRallies    *int     `json:"totalRallies"`
	AvgRallyLength  *float64 `json:"avgRallyLength"`
	AvgBallSpeed    *float64 `json:"avgBallSpeed"`
	MaxBallSpeed    *float64 `json:"maxBallSpeed"`
	DurationSeconds *float64 `json:"durationSeconds"`
	TotalFrames     *int64   `json:"totalFrames"`
}

// Document is one full inference result for a match.
type Document struct {
	Source     string      `json:"source"`
	FPS        float64     `json:"fps"`
	Events     []Event     `json:"events"`
	Shots      []Shot      `json:"shots"`
	Statistics *Statistics `json:"statistics"`
}

// Parse decodes a producer document and runs structural validation.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode inference document: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and parses an inference document from disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inference document: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate rejects structurally unusable documents: empty input, confidence
// or accuracy outside their ranges, unknown player numbers, negative frames
// or timestamps. Timeline resolvability (fps vs frame-only input) is checked
// by the normalizer, which owns fps inference.
func Validate(doc *Document) error {
	if len(doc.Events) == 0 && len(doc.Shots) == 0 {
		return ErrEmptyInput
	}
	if doc.FPS < 0 {
		return fmt.Errorf("%w: fps %v is negative", ErrInvalidField, doc.FPS)
	}
	for i, ev := range doc.Events {
		if err := validateTiming(&ev.Timing); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if err := validateConfidence(ev.Confidence); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if err := validatePlayer(ev.Player); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		for j, d := range ev.Detections {
			if err := validateConfidence(d.Confidence); err != nil {
				return fmt.Errorf("events[%d].detections[%d]: %w", i, j, err)
			}
		}
	}
	for i, sh := range doc.Shots {
		if err := validateTiming(&sh.Timing); err != nil {
			return fmt.Errorf("shots[%d]: %w", i, err)
		}
		if err := validateConfidence(sh.Confidence); err != nil {
			return fmt.Errorf("shots[%d]: %w", i, err)
		}
		if err := validatePlayer(sh.Player); err != nil {
			return fmt.Errorf("shots[%d]: %w", i, err)
		}
		if sh.Accuracy != nil && (*sh.Accuracy < 0 || *sh.Accuracy > 100) {
			return fmt.Errorf("shots[%d]: %w: accuracy %v outside [0,100]", i, ErrInvalidField, *sh.Accuracy)
		}
		if sh.Speed != nil && *sh.Speed < 0 {
			return fmt.Errorf("shots[%d]: %w: speed %v is negative", i, ErrInvalidField, *sh.Speed)
		}
		for j, d := range sh.Detections {
			if err := validateConfidence(d.Confidence); err != nil {
				return fmt.Errorf("shots[%d].detections[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateTiming(t *Timing) error {
	if t.Frame != nil && *t.Frame < 0 {
		return fmt.Errorf("%w: frame %d is negative", ErrInvalidField, *t.Frame)
	}
	if t.TimestampMs != nil && *t.TimestampMs < 0 {
		return fmt.Errorf("%w: timestampMs %v is negative", ErrInvalidField, *t.TimestampMs)
	}
	for _, ts := range t.TimestampSeries {
		if ts < 0 {
			return fmt.Errorf("%w: timestampSeries value %v is negative", ErrInvalidField, ts)
		}
	}
	for _, fr := range t.FrameSeries {
		if fr < 0 {
			return fmt.Errorf("%w: frameSeries value %d is negative", ErrInvalidField, fr)
		}
	}
	return nil
}

func validateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidField, c)
	}
	return nil
}

func validatePlayer(p *int) error {
	if p != nil && *p != 1 && *p != 2 {
		return fmt.Errorf("%w: player %d not in {1,2}", ErrInvalidField, *p)
	}
	return nil
}
