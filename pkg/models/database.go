package models

import "time"

// RunSummary is the stored header of one analysis run.
type RunSummary struct {
	ID              string // UUID of the run
	Name            string
	Digest          string // content digest of the analyzed tracks
	RecordCount     int
	ReplayCount     int
	MatchedCount    int
	DroppedCount    int
	DuplicatedCount int
	SuccessRate     float64 // matched / record, 0..1
	MeanError       float64 // mean signed keyon offset of matched pairs
	MAE             float64
	StdDev          float64
	CreatedAt       time.Time
}

// StoredAnomaly is an anomaly row as persisted with its run.
type StoredAnomaly struct {
	RunID      string
	Kind       AnomalyKind
	Status     AnomalyStatus
	Failure    FailureKind
	EventIndex int
	KeyID      int
	KeyOn      int64
	KeyOff     int64
	Reason     string
}
