// Package prefilter removes events that cannot or should not be aligned,
// before they reach the aligner.
package prefilter

import "github.com/himanishpuri/HammerCheck/pkg/models"

// Reason names why an event was filtered out.
type Reason string

const (
	ReasonEmptyData        Reason = "empty_data"
	ReasonDurationTooShort Reason = "duration_too_short"
	ReasonPressureTooWeak  Reason = "pressure_too_weak"
	ReasonNotAudible       Reason = "not_audible"
)

// AudibilityChecker decides whether a strike of the given velocity on the
// given key produces sound.
type AudibilityChecker interface {
	Audible(keyID, velocity int) bool
}

// Logger is the subset of the project logger the filter uses.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Config selects the optional checks. Zero values disable them; events that
// are not analyzable are always removed.
type Config struct {
	MinDuration     int64
	MinPeakPressure int
	Checker         AudibilityChecker
}

// InvalidStats counts what one track lost to the filter.
type InvalidStats struct {
	Total   int
	Valid   int
	Invalid int
	Reasons map[Reason]int
}

// Filter applies Config to event tracks.
type Filter struct {
	cfg Config
	log Logger
}

func New(cfg Config, log Logger) *Filter {
	if log == nil {
		log = nopLogger{}
	}
	return &Filter{cfg: cfg, log: log}
}

// Track is one filtered track.
type Track struct {
	Events  []models.Event
	Indices []int // input position of each kept event
	Stats   InvalidStats
}

// Tracks filters both tracks independently.
func (f *Filter) Tracks(record, replay []models.Event) (Track, Track) {
	rec := f.Apply(models.SideRecord, record)
	rep := f.Apply(models.SideReplay, replay)
	f.log.Debugf("prefilter: record %d/%d valid, replay %d/%d valid",
		rec.Stats.Valid, rec.Stats.Total, rep.Stats.Valid, rep.Stats.Total)
	return rec, rep
}

// Apply keeps the events that pass every enabled check, in input order.
func (f *Filter) Apply(side models.Side, events []models.Event) Track {
	t := Track{
		Events:  make([]models.Event, 0, len(events)),
		Indices: make([]int, 0, len(events)),
		Stats:   InvalidStats{Total: len(events), Reasons: make(map[Reason]int)},
	}

	for i, e := range events {
		if reason, ok := f.check(e); !ok {
			t.Stats.Reasons[reason]++
			f.log.Debugf("prefilter: %s[%d] %s removed: %s", side, i, e, reason)
			continue
		}
		t.Events = append(t.Events, e)
		t.Indices = append(t.Indices, i)
	}

	t.Stats.Valid = len(t.Events)
	t.Stats.Invalid = t.Stats.Total - t.Stats.Valid
	return t
}

func (f *Filter) check(e models.Event) (Reason, bool) {
	if !e.Analyzable() {
		return ReasonEmptyData, false
	}
	if f.cfg.MinDuration > 0 && e.Duration() < f.cfg.MinDuration {
		return ReasonDurationTooShort, false
	}
	if f.cfg.MinPeakPressure > 0 && e.PeakPressure() < f.cfg.MinPeakPressure {
		return ReasonPressureTooWeak, false
	}
	if f.cfg.Checker != nil && !f.cfg.Checker.Audible(e.KeyID, e.FirstVelocity()) {
		return ReasonNotAudible, false
	}
	return "", true
}
