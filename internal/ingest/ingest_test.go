package ingest

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"fps": 120, "events": [], "shots": []}`))
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("got %v, want ErrEmptyInput", err)
	}
}

func TestParseKeepsAbsentFieldsNil(t *testing.T) {
	doc, err := Parse(strings.NewReader(`{
		"fps": 120,
		"shots": [{"timestampMs": 100, "confidence": 0.9}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	s := doc.Shots[0]
	if s.Player != nil || s.Speed != nil || s.Frame != nil {
		t.Fatalf("absent fields must stay nil: %+v", s)
	}
	if s.TimestampMs == nil || *s.TimestampMs != 100 {
		t.Fatalf("timestampMs: %+v", s.TimestampMs)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"negative fps", `{"fps": -1, "shots": [{"timestampMs": 0, "confidence": 0.5}]}`},
		{"confidence above one", `{"shots": [{"timestampMs": 0, "confidence": 1.5}]}`},
		{"negative frame", `{"shots": [{"frame": -3, "confidence": 0.5}]}`},
		{"negative timestamp", `{"shots": [{"timestampMs": -10, "confidence": 0.5}]}`},
		{"player out of range", `{"shots": [{"timestampMs": 0, "player": 3, "confidence": 0.5}]}`},
		{"accuracy above range", `{"shots": [{"timestampMs": 0, "accuracy": 120, "confidence": 0.5}]}`},
		{"negative speed", `{"shots": [{"timestampMs": 0, "speed": -5, "confidence": 0.5}]}`},
		{"bad event timestamp series", `{"events": [{"type": "SCORE", "timestampSeries": [-1], "confidence": 0.5}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.json))
			if err == nil {
				t.Fatal("validation should have failed")
			}
			if !errors.Is(err, ErrInvalidField) {
				t.Fatalf("got %v, want ErrInvalidField", err)
			}
		})
	}
}

func TestValidateAcceptsFrameOnlyShots(t *testing.T) {
	// Frame-only input is structurally fine; whether it is resolvable
	// depends on fps, which the normalizer owns.
	_, err := Parse(strings.NewReader(`{"shots": [{"frame": 100, "confidence": 0.5}]}`))
	if err != nil {
		t.Fatalf("frame-only shot should pass structural validation: %v", err)
	}
}
