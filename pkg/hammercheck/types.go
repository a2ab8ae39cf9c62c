package hammercheck

import (
	"errors"

	"github.com/himanishpuri/HammerCheck/internal/metrics"
	"github.com/himanishpuri/HammerCheck/internal/prefilter"
	"github.com/himanishpuri/HammerCheck/pkg/models"
)

var (
	// ErrEmptyRequest is returned when both tracks are empty.
	ErrEmptyRequest = errors.New("both tracks are empty")
	// ErrFilteredEvent is returned when an exceeds-tolerance pair names an
	// event the prefilter removed.
	ErrFilteredEvent = errors.New("exceeds-tolerance pair references a filtered event")
	// ErrHistoryDisabled is returned by history queries on a service built
	// WithoutHistory.
	ErrHistoryDisabled = errors.New("analysis history is disabled")
)

type (
	Summary      = metrics.Summary
	Delay        = metrics.Delay
	Offset       = metrics.Offset
	InvalidStats = prefilter.InvalidStats
)

// IndexPair names one record event and one replay event by input position.
type IndexPair struct {
	Record int `json:"record"`
	Replay int `json:"replay"`
}

// AnalyzeRequest is one record/replay comparison.
type AnalyzeRequest struct {
	Name   string
	Record []models.Event
	Replay []models.Event
	// ExceedsTolerance optionally lists pairs a looser pass matched beyond
	// tolerance. Both halves are reported as anomalies.
	ExceedsTolerance []IndexPair
}

// Report is the outcome of Analyze. Every index in it refers to the input
// tracks as given, before prefiltering.
type Report struct {
	RunID    string
	Name     string
	Digest   string
	Existing bool // the same tracks were analyzed before; RunID is that run

	Pairs      []models.MatchedPair
	Dropped    []models.AnomalyRecord
	Duplicated []models.AnomalyRecord

	Summary     Summary
	Delay       Delay
	Offsets     []Offset
	RecordStats InvalidStats
	ReplayStats InvalidStats
}
