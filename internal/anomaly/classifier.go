// Package anomaly classifies every event left unpaired by the aligner as a
// dropped (record-only) or duplicated (replay-only) strike.
package anomaly

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/HammerCheck/internal/align"
	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// Contract violations. They indicate a broken caller, not a domain outcome.
var (
	ErrIndexOutOfRange = errors.New("pair index out of range")
	ErrIndexReused     = errors.New("pair index consumed more than once")
	ErrEventMismatch   = errors.New("pair event does not match the indexed event")
)

// Result holds the classified anomalies. Dropped lists unmatched record
// events by index followed by the record halves of exceeds-tolerance pairs;
// Duplicated is ordered the same way for the replay side.
type Result struct {
	Dropped    []models.AnomalyRecord
	Duplicated []models.AnomalyRecord
}

// Total is the number of anomalies in both lists.
func (r Result) Total() int { return len(r.Dropped) + len(r.Duplicated) }

// Classifier turns the aligner's leftovers into anomaly records. It reuses
// the aligner's candidate search to infer reasons for replay events.
type Classifier struct {
	aligner *align.Aligner
	log     align.Logger
}

// New returns a Classifier that infers replay-side reasons with aligner.
func New(aligner *align.Aligner, log align.Logger) *Classifier {
	if aligner == nil {
		aligner = align.New(align.DefaultWindow(), log)
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Classifier{aligner: aligner, log: log}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Classify partitions every event not consumed by pairs or exceeds into
// anomalies, and flags both halves of each exceeds pair. exceeds may be nil.
func (c *Classifier) Classify(
	record, replay []models.Event,
	pairs []models.MatchedPair,
	reasons models.FailureReasons,
	exceeds []models.MatchedPair,
) (Result, error) {
	consumedRecord := make([]bool, len(record))
	consumedReplay := make([]bool, len(replay))

	if err := consume(pairs, "pairs", record, replay, consumedRecord, consumedReplay); err != nil {
		return Result{}, err
	}
	if err := consume(exceeds, "exceeds", record, replay, consumedRecord, consumedReplay); err != nil {
		return Result{}, err
	}

	var res Result
	for i, e := range record {
		if consumedRecord[i] {
			continue
		}
		f := recordedReason(reasons, i)
		res.Dropped = append(res.Dropped, unmatched(e, i, models.Dropped, f))
	}

	for j, e := range replay {
		if consumedReplay[j] {
			continue
		}
		f := c.inferReplayReason(e, record, consumedRecord)
		res.Duplicated = append(res.Duplicated, unmatched(e, j, models.Duplicated, f))
	}

	for _, p := range exceeds {
		reason := exceedsReason(reasons, p)
		res.Dropped = append(res.Dropped, models.AnomalyRecord{
			Event:   p.Record,
			Index:   p.RecordIndex,
			Kind:    models.Dropped,
			Status:  models.StatusExceedsTolerance,
			Failure: models.ExceedsToleranceButMatched,
			Reason:  reason,
		})
		res.Duplicated = append(res.Duplicated, models.AnomalyRecord{
			Event:   p.Replay,
			Index:   p.ReplayIndex,
			Kind:    models.Duplicated,
			Status:  models.StatusExceedsTolerance,
			Failure: models.ExceedsToleranceButMatched,
			Reason:  reason,
		})
	}

	c.log.Debugf("anomaly: %d dropped, %d duplicated (%d exceeds-tolerance pairs)",
		len(res.Dropped), len(res.Duplicated), len(exceeds))
	return res, nil
}

func consume(pairs []models.MatchedPair, label string, record, replay []models.Event, usedRecord, usedReplay []bool) error {
	for n, p := range pairs {
		if p.RecordIndex < 0 || p.RecordIndex >= len(record) {
			return fmt.Errorf("%s[%d]: record index %d of %d: %w", label, n, p.RecordIndex, len(record), ErrIndexOutOfRange)
		}
		if p.ReplayIndex < 0 || p.ReplayIndex >= len(replay) {
			return fmt.Errorf("%s[%d]: replay index %d of %d: %w", label, n, p.ReplayIndex, len(replay), ErrIndexOutOfRange)
		}
		if usedRecord[p.RecordIndex] {
			return fmt.Errorf("%s[%d]: record index %d: %w", label, n, p.RecordIndex, ErrIndexReused)
		}
		if usedReplay[p.ReplayIndex] {
			return fmt.Errorf("%s[%d]: replay index %d: %w", label, n, p.ReplayIndex, ErrIndexReused)
		}
		if !sameEvent(p.Record, record[p.RecordIndex]) || !sameEvent(p.Replay, replay[p.ReplayIndex]) {
			return fmt.Errorf("%s[%d]: (%d,%d): %w", label, n, p.RecordIndex, p.ReplayIndex, ErrEventMismatch)
		}
		usedRecord[p.RecordIndex] = true
		usedReplay[p.ReplayIndex] = true
	}
	return nil
}

func sameEvent(a, b models.Event) bool {
	return a.KeyID == b.KeyID && a.KeyOn() == b.KeyOn() && a.KeyOff() == b.KeyOff()
}

func unmatched(e models.Event, index int, kind models.AnomalyKind, f models.Failure) models.AnomalyRecord {
	return models.AnomalyRecord{
		Event:   e,
		Index:   index,
		Kind:    kind,
		Status:  models.StatusUnmatched,
		Failure: f.Kind,
		Reason:  f.Reason,
	}
}

// recordedReason returns the failure the aligner logged for a record event
// at decision time.
func recordedReason(reasons models.FailureReasons, index int) models.Failure {
	if f, ok := reasons.Lookup(models.SideRecord, index); ok && f.Reason != "" {
		return f
	}
	return models.Failure{Kind: models.Unknown, Reason: models.NoReasonRecorded}
}

// inferReplayReason reconstructs why a replay event went unpaired by running
// the candidate search from the replay side. Matching was driven from the
// record side, so this is an inference made after every decision was final.
func (c *Classifier) inferReplayReason(target models.Event, record []models.Event, consumedRecord []bool) models.Failure {
	res := c.aligner.Search(target, record)
	if res.Failure != nil {
		return *res.Failure
	}

	for _, cand := range res.Survivors {
		if consumedRecord[cand.Index] {
			continue
		}
		return models.Failure{
			Kind: models.Unpaired,
			Reason: fmt.Sprintf("record[%d] within tolerance (error=%d, tolerance=%d) but not paired",
				cand.Index, cand.TimeError, res.Tolerance),
			BestError:  res.BestError,
			Tolerance:  res.Tolerance,
			Candidates: len(res.Survivors),
		}
	}
	return align.AllOccupied(len(res.Survivors), res.BestError, res.Tolerance)
}

func exceedsReason(reasons models.FailureReasons, p models.MatchedPair) string {
	if f, ok := reasons.Lookup(models.SideRecord, p.RecordIndex); ok && f.Reason != "" {
		return f.Reason
	}
	return fmt.Sprintf("correspondence found but time error too large (error=%d)", p.TimeError)
}
