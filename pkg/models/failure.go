package models

// FailureKind classifies why an event found no correspondence. These are
// expected domain outcomes, not Go errors.
type FailureKind string

const (
	NoCandidateKey             FailureKind = "no_candidate_key"
	InvalidDuration            FailureKind = "invalid_duration"
	ToleranceExceeded          FailureKind = "tolerance_exceeded"
	AllCandidatesOccupied      FailureKind = "all_candidates_occupied"
	ExceedsToleranceButMatched FailureKind = "exceeds_tolerance_but_matched"
	// Unpaired is only inferred for replay events: an in-tolerance record
	// event exists and is still free, but the record-driven pass never chose it.
	Unpaired FailureKind = "unpaired"
	// Unknown marks a dropped event that has no recorded failure.
	Unknown FailureKind = "unknown"
)

// NoReasonRecorded is the reason attached to a dropped event with no entry in
// the failure map.
const NoReasonRecorded = "no reason recorded"

// Failure is the diagnosis for one event that could not be paired.
type Failure struct {
	Kind       FailureKind
	Reason     string
	BestError  int64 // smallest same-key time error seen, when candidates existed
	Tolerance  int64 // tolerance window in effect, when it was computed
	Candidates int   // number of in-tolerance candidates
}

// FailureKey addresses one event on one side.
type FailureKey struct {
	Side  Side
	Index int
}

// FailureReasons maps events to their diagnosis. The aligner only fills the
// record side.
type FailureReasons map[FailureKey]Failure

// Lookup returns the failure recorded for (side, index).
func (f FailureReasons) Lookup(side Side, index int) (Failure, bool) {
	if f == nil {
		return Failure{}, false
	}
	failure, ok := f[FailureKey{Side: side, Index: index}]
	return failure, ok
}

// AnomalyKind is the defect an unpaired event is classified as.
type AnomalyKind string

const (
	// Dropped is a record event with no valid replay counterpart.
	Dropped AnomalyKind = "dropped"
	// Duplicated is a replay event with no valid record counterpart.
	Duplicated AnomalyKind = "duplicated"
)

// AnomalyStatus separates "no correspondence found" from "correspondence
// found but too far off".
type AnomalyStatus string

const (
	StatusUnmatched        AnomalyStatus = "unmatched"
	StatusExceedsTolerance AnomalyStatus = "exceeds_tolerance"
)

// AnomalyRecord is one classified defect. Reason is never empty.
type AnomalyRecord struct {
	Event   Event
	Index   int
	Kind    AnomalyKind
	Status  AnomalyStatus
	Failure FailureKind
	Reason  string
}

// Side returns the track the anomalous event came from.
func (a AnomalyRecord) Side() Side {
	if a.Kind == Duplicated {
		return SideReplay
	}
	return SideRecord
}
