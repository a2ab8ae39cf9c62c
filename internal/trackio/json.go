// Package trackio loads record/replay track pairs from JSON.
package trackio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// ErrNoEvents is returned when a document has neither record nor replay events.
var ErrNoEvents = errors.New("track document has no events")

// StrikeJSON is the wire form of models.Strike.
type StrikeJSON struct {
	Time     int64 `json:"time"`
	Velocity int   `json:"velocity"`
}

// PressureJSON is the wire form of models.PressureSample.
type PressureJSON struct {
	Time  int64 `json:"time"`
	Value int   `json:"value"`
}

// EventJSON is the wire form of one key-press episode.
type EventJSON struct {
	KeyID      int            `json:"key_id"`
	TimeOrigin int64          `json:"time_origin"`
	Strikes    []StrikeJSON   `json:"strikes,omitempty"`
	Pressure   []PressureJSON `json:"pressure,omitempty"`
}

// Document is a record/replay pair as stored on disk or sent over HTTP.
type Document struct {
	Record []EventJSON `json:"record"`
	Replay []EventJSON `json:"replay"`
}

// Tracks is a decoded document.
type Tracks struct {
	Record []models.Event
	Replay []models.Event
}

// Decode reads one Document from r.
func Decode(r io.Reader) (Tracks, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Tracks{}, fmt.Errorf("failed to decode tracks: %w", err)
	}
	return doc.Tracks()
}

// LoadFile decodes the document at path.
func LoadFile(path string) (Tracks, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tracks{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	tracks, err := Decode(f)
	if err != nil {
		return Tracks{}, fmt.Errorf("%s: %w", path, err)
	}
	return tracks, nil
}

// Tracks converts the wire form into events.
func (d Document) Tracks() (Tracks, error) {
	if len(d.Record) == 0 && len(d.Replay) == 0 {
		return Tracks{}, ErrNoEvents
	}
	return Tracks{Record: toEvents(d.Record), Replay: toEvents(d.Replay)}, nil
}

func toEvents(in []EventJSON) []models.Event {
	out := make([]models.Event, 0, len(in))
	for _, e := range in {
		strikes := make([]models.Strike, len(e.Strikes))
		for i, s := range e.Strikes {
			strikes[i] = models.Strike{Time: s.Time, Velocity: s.Velocity}
		}
		samples := make([]models.PressureSample, len(e.Pressure))
		for i, p := range e.Pressure {
			samples[i] = models.PressureSample{Time: p.Time, Value: p.Value}
		}
		out = append(out, models.NewEvent(e.KeyID, e.TimeOrigin, strikes, samples))
	}
	return out
}
