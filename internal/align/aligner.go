// Package align pairs record events with replay events of the same key.
//
// Record events are visited strictly in input order and each one greedily
// claims the closest free replay event inside its tolerance window. The
// assignment is first-fit, not globally optimal: an earlier record event
// keeps a candidate even when a later one would have matched it more closely.
package align

import (
	"fmt"
	"sort"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// Logger is the subset of the project logger the aligner needs.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Candidate is a same-key event on the opposite track and its key-on error
// against the target.
type Candidate struct {
	Index     int
	TimeError int64
}

// SearchResult is the outcome of the candidate search for one target.
type SearchResult struct {
	SameKey   int         // same-key events seen on the opposite track
	Tolerance int64       // 0 when the search stopped before computing it
	BestError int64       // smallest same-key error, -1 with no same-key events
	Survivors []Candidate // in-tolerance candidates, ascending by TimeError
	Failure   *models.Failure
}

// Aligner computes matched pairs between a record and a replay track.
type Aligner struct {
	window Window
	log    Logger
}

// New returns an Aligner. An invalid window falls back to DefaultWindow and a
// nil logger discards output.
func New(window Window, log Logger) *Aligner {
	if !window.valid() {
		window = DefaultWindow()
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Aligner{window: window, log: log}
}

// Window returns the tolerance model in use.
func (a *Aligner) Window() Window { return a.window }

// Match pairs every record event with at most one replay event and returns
// the pairs in record order plus a failure for every record event left
// unpaired. The only error is a contract violation in the input.
func (a *Aligner) Match(record, replay []models.Event) ([]models.MatchedPair, models.FailureReasons, error) {
	if err := checkAnalyzable(models.SideRecord, record); err != nil {
		return nil, nil, err
	}
	if err := checkAnalyzable(models.SideReplay, replay); err != nil {
		return nil, nil, err
	}

	pairs := make([]models.MatchedPair, 0, min(len(record), len(replay)))
	reasons := make(models.FailureReasons)
	consumed := make([]bool, len(replay))

	for i, target := range record {
		res := a.Search(target, replay)
		if res.Failure != nil {
			a.fail(reasons, i, target, *res.Failure)
			continue
		}

		chosen := -1
		for _, c := range res.Survivors {
			if !consumed[c.Index] {
				chosen = c.Index
				break
			}
		}
		if chosen < 0 {
			a.fail(reasons, i, target, AllOccupied(len(res.Survivors), res.BestError, res.Tolerance))
			continue
		}

		consumed[chosen] = true
		pairs = append(pairs, models.NewMatchedPair(i, chosen, target, replay[chosen]))
	}

	a.log.Debugf("align: %d/%d record events paired, %d failures", len(pairs), len(record), len(reasons))
	return pairs, reasons, nil
}

func (a *Aligner) fail(reasons models.FailureReasons, index int, target models.Event, f models.Failure) {
	reasons[models.FailureKey{Side: models.SideRecord, Index: index}] = f
	a.log.Debugf("align: record[%d] %s unmatched: %s", index, target, f.Reason)
}

// Search runs candidate generation and the tolerance filter for one target
// against the opposite track. It does not look at which candidates are
// already consumed.
func (a *Aligner) Search(target models.Event, opposite []models.Event) SearchResult {
	res := SearchResult{BestError: -1}

	keyOn := target.KeyOn() + GlobalTimeOffset
	keyOff := target.KeyOff() + GlobalTimeOffset

	var candidates []Candidate
	for j, c := range opposite {
		if c.KeyID != target.KeyID {
			continue
		}
		e := models.AbsDiff(c.KeyOn(), keyOn)
		candidates = append(candidates, Candidate{Index: j, TimeError: e})
		if res.BestError < 0 || e < res.BestError {
			res.BestError = e
		}
	}
	res.SameKey = len(candidates)
	if len(candidates) == 0 {
		res.Failure = noCandidateKey(target.KeyID)
		return res
	}

	duration := keyOff - keyOn
	if duration <= 0 {
		res.Failure = invalidDuration(res.BestError)
		return res
	}
	res.Tolerance = a.window.Tolerance(duration)

	survivors := candidates[:0]
	for _, c := range candidates {
		if c.TimeError <= res.Tolerance {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		res.Failure = toleranceExceeded(res.BestError, res.Tolerance)
		return res
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].TimeError < survivors[j].TimeError
	})
	res.Survivors = survivors
	return res
}

func checkAnalyzable(side models.Side, events []models.Event) error {
	for i, e := range events {
		if !e.Analyzable() {
			return fmt.Errorf("%s[%d] key_id=%d: %w", side, i, e.KeyID, models.ErrUnanalyzableEvent)
		}
	}
	return nil
}
