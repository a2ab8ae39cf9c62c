package models

import (
	"errors"
	"fmt"
)

// ErrUnanalyzableEvent is returned when an event with neither pressure samples
// nor positive strikes reaches the aligner. Such events must be filtered first.
var ErrUnanalyzableEvent = errors.New("event has no pressure samples and no strikes")

// Strike is one hammer activation, relative to the owning event's TimeOrigin.
// A Velocity <= 0 is a non-event.
type Strike struct {
	Time     int64
	Velocity int
}

// PressureSample is one after-touch sensor reading while the key is held.
type PressureSample struct {
	Time  int64
	Value int
}

// Event is one key-press episode on one track. Build it with NewEvent so the
// derived key-on/key-off instants are populated.
type Event struct {
	KeyID           int
	TimeOrigin      int64
	Strikes         []Strike
	PressureSamples []PressureSample

	keyOn      int64
	keyOff     int64
	analyzable bool
}

// NewEvent builds an Event and derives its key-on/key-off instants.
// Fallback order for both: pressure samples, then positive strikes, then
// TimeOrigin alone.
func NewEvent(keyID int, origin int64, strikes []Strike, samples []PressureSample) Event {
	e := Event{
		KeyID:           keyID,
		TimeOrigin:      origin,
		Strikes:         strikes,
		PressureSamples: samples,
		keyOn:           origin,
		keyOff:          origin,
	}

	if len(samples) > 0 {
		e.keyOn = samples[0].Time + origin
		e.keyOff = samples[len(samples)-1].Time + origin
		e.analyzable = true
		return e
	}

	if first, last, ok := e.hitSpan(); ok {
		e.keyOn = first.Time + origin
		e.keyOff = last.Time + origin
		e.analyzable = true
	}
	return e
}

// hitSpan returns the first and last strikes with a positive velocity.
func (e Event) hitSpan() (first, last Strike, ok bool) {
	for _, s := range e.Strikes {
		if s.Velocity <= 0 {
			continue
		}
		if !ok {
			first = s
			ok = true
		}
		last = s
	}
	return first, last, ok
}

func (e Event) KeyOn() int64    { return e.keyOn }
func (e Event) KeyOff() int64   { return e.keyOff }
func (e Event) Duration() int64 { return e.keyOff - e.keyOn }

// Analyzable reports whether the event carries at least one usable data source.
func (e Event) Analyzable() bool { return e.analyzable }

// Hits returns the strikes with a positive velocity, in order.
func (e Event) Hits() []Strike {
	hits := make([]Strike, 0, len(e.Strikes))
	for _, s := range e.Strikes {
		if s.Velocity > 0 {
			hits = append(hits, s)
		}
	}
	return hits
}

// FirstVelocity is the velocity of the first positive strike, or 0.
func (e Event) FirstVelocity() int {
	if first, _, ok := e.hitSpan(); ok {
		return first.Velocity
	}
	return 0
}

// PeakPressure is the largest pressure sample value, or 0 with no samples.
func (e Event) PeakPressure() int {
	peak := 0
	for i, p := range e.PressureSamples {
		if i == 0 || p.Value > peak {
			peak = p.Value
		}
	}
	return peak
}

func (e Event) String() string {
	return fmt.Sprintf("key=%d on=%d off=%d", e.KeyID, e.keyOn, e.keyOff)
}

// Side names one of the two tracks.
type Side string

const (
	SideRecord Side = "record"
	SideReplay Side = "replay"
)

// MatchedPair links a record event to its replay counterpart. Once created
// both indices are consumed for the rest of the run.
type MatchedPair struct {
	RecordIndex int
	ReplayIndex int
	Record      Event
	Replay      Event
	TimeError   int64 // |replay.KeyOn - record.KeyOn|
}

// NewMatchedPair fills TimeError from the two events.
func NewMatchedPair(recordIdx, replayIdx int, record, replay Event) MatchedPair {
	return MatchedPair{
		RecordIndex: recordIdx,
		ReplayIndex: replayIdx,
		Record:      record,
		Replay:      replay,
		TimeError:   AbsDiff(replay.KeyOn(), record.KeyOn()),
	}
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
