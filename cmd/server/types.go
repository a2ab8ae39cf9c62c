package main

import (
	"fmt"

	"github.com/himanishpuri/HammerCheck/internal/trackio"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck"
	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// MaxEventsPerTrack bounds one analyze request.
const MaxEventsPerTrack = 200000

// AnalyzeRequestDTO is the request body for POST /api/analyze
type AnalyzeRequestDTO struct {
	Name             string                  `json:"name,omitempty"`
	Record           []trackio.EventJSON     `json:"record"`
	Replay           []trackio.EventJSON     `json:"replay"`
	ExceedsTolerance []hammercheck.IndexPair `json:"exceeds_tolerance,omitempty"`
}

// Validate checks if the request is valid
func (r *AnalyzeRequestDTO) Validate() error {
	if len(r.Record) == 0 && len(r.Replay) == 0 {
		return fmt.Errorf("record and replay cannot both be empty")
	}
	if len(r.Record) > MaxEventsPerTrack || len(r.Replay) > MaxEventsPerTrack {
		return fmt.Errorf("too many events: %d record / %d replay (maximum: %d per track)",
			len(r.Record), len(r.Replay), MaxEventsPerTrack)
	}
	return nil
}

// ToRequest converts the body into a service request.
func (r *AnalyzeRequestDTO) ToRequest() (hammercheck.AnalyzeRequest, error) {
	tracks, err := trackio.Document{Record: r.Record, Replay: r.Replay}.Tracks()
	if err != nil {
		return hammercheck.AnalyzeRequest{}, err
	}
	return hammercheck.AnalyzeRequest{
		Name:             r.Name,
		Record:           tracks.Record,
		Replay:           tracks.Replay,
		ExceedsTolerance: r.ExceedsTolerance,
	}, nil
}

// PairDTO represents one matched pair
type PairDTO struct {
	RecordIndex int   `json:"record_index"`
	ReplayIndex int   `json:"replay_index"`
	KeyID       int   `json:"key_id"`
	TimeError   int64 `json:"time_error"`
}

// AnomalyDTO represents one dropped or duplicated event
type AnomalyDTO struct {
	Side    string `json:"side"`
	Index   int    `json:"index"`
	KeyID   int    `json:"key_id"`
	KeyOn   int64  `json:"key_on"`
	KeyOff  int64  `json:"key_off"`
	Hits    int    `json:"hits"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Failure string `json:"failure"`
	Reason  string `json:"reason"`
}

type SummaryDTO struct {
	RecordCount     int     `json:"record_count"`
	ReplayCount     int     `json:"replay_count"`
	MatchedCount    int     `json:"matched_count"`
	DroppedCount    int     `json:"dropped_count"`
	DuplicatedCount int     `json:"duplicated_count"`
	ExceedsCount    int     `json:"exceeds_count"`
	SuccessRate     float64 `json:"success_rate"`
}

type DelayDTO struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	MAE      float64 `json:"mae"`
	StdDev   float64 `json:"std_dev"`
	Variance float64 `json:"variance"`
	RMSE     float64 `json:"rmse"`
	CV       float64 `json:"cv"`
	Max      int64   `json:"max"`
	Min      int64   `json:"min"`
}

type OffsetDTO struct {
	RecordIndex   int     `json:"record_index"`
	ReplayIndex   int     `json:"replay_index"`
	KeyID         int     `json:"key_id"`
	KeyOnOffset   int64   `json:"keyon_offset"`
	KeyOffOffset  int64   `json:"keyoff_offset"`
	AverageOffset float64 `json:"average_offset"`
	DurationDiff  int64   `json:"duration_diff"`
}

type InvalidStatsDTO struct {
	Total   int            `json:"total"`
	Valid   int            `json:"valid"`
	Invalid int            `json:"invalid"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

// ReportDTO is the response for POST /api/analyze
type ReportDTO struct {
	RunID       string          `json:"run_id"`
	Name        string          `json:"name"`
	Digest      string          `json:"digest"`
	Existing    bool            `json:"existing"`
	Summary     SummaryDTO      `json:"summary"`
	Delay       DelayDTO        `json:"delay"`
	Pairs       []PairDTO       `json:"pairs"`
	Offsets     []OffsetDTO     `json:"offsets"`
	Dropped     []AnomalyDTO    `json:"dropped"`
	Duplicated  []AnomalyDTO    `json:"duplicated"`
	RecordStats InvalidStatsDTO `json:"record_stats"`
	ReplayStats InvalidStatsDTO `json:"replay_stats"`
}

func newReportDTO(r *hammercheck.Report) ReportDTO {
	dto := ReportDTO{
		RunID:    r.RunID,
		Name:     r.Name,
		Digest:   r.Digest,
		Existing: r.Existing,
		Summary: SummaryDTO{
			RecordCount:     r.Summary.RecordCount,
			ReplayCount:     r.Summary.ReplayCount,
			MatchedCount:    r.Summary.MatchedCount,
			DroppedCount:    r.Summary.DroppedCount,
			DuplicatedCount: r.Summary.DuplicatedCount,
			ExceedsCount:    r.Summary.ExceedsCount,
			SuccessRate:     r.Summary.SuccessRate,
		},
		Delay:       DelayDTO(r.Delay),
		Pairs:       make([]PairDTO, len(r.Pairs)),
		Offsets:     make([]OffsetDTO, len(r.Offsets)),
		Dropped:     anomalyDTOs(r.Dropped),
		Duplicated:  anomalyDTOs(r.Duplicated),
		RecordStats: statsDTO(r.RecordStats),
		ReplayStats: statsDTO(r.ReplayStats),
	}
	for i, p := range r.Pairs {
		dto.Pairs[i] = PairDTO{RecordIndex: p.RecordIndex, ReplayIndex: p.ReplayIndex, KeyID: p.Record.KeyID, TimeError: p.TimeError}
	}
	for i, o := range r.Offsets {
		dto.Offsets[i] = OffsetDTO{
			RecordIndex:   o.RecordIndex,
			ReplayIndex:   o.ReplayIndex,
			KeyID:         o.KeyID,
			KeyOnOffset:   o.KeyOnOffset,
			KeyOffOffset:  o.KeyOffOffset,
			AverageOffset: o.AverageOffset,
			DurationDiff:  o.DurationDiff,
		}
	}
	return dto
}

func anomalyDTOs(list []models.AnomalyRecord) []AnomalyDTO {
	out := make([]AnomalyDTO, len(list))
	for i, a := range list {
		out[i] = AnomalyDTO{
			Side:    string(a.Side()),
			Index:   a.Index,
			KeyID:   a.Event.KeyID,
			KeyOn:   a.Event.KeyOn(),
			KeyOff:  a.Event.KeyOff(),
			Hits:    len(a.Event.Hits()),
			Kind:    string(a.Kind),
			Status:  string(a.Status),
			Failure: string(a.Failure),
			Reason:  a.Reason,
		}
	}
	return out
}

func statsDTO(s hammercheck.InvalidStats) InvalidStatsDTO {
	dto := InvalidStatsDTO{Total: s.Total, Valid: s.Valid, Invalid: s.Invalid}
	if len(s.Reasons) > 0 {
		dto.Reasons = make(map[string]int, len(s.Reasons))
		for k, v := range s.Reasons {
			dto.Reasons[string(k)] = v
		}
	}
	return dto
}

// RunDTO represents a stored run in API responses
type RunDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Digest          string  `json:"digest"`
	RecordCount     int     `json:"record_count"`
	ReplayCount     int     `json:"replay_count"`
	MatchedCount    int     `json:"matched_count"`
	DroppedCount    int     `json:"dropped_count"`
	DuplicatedCount int     `json:"duplicated_count"`
	SuccessRate     float64 `json:"success_rate"`
	MeanError       float64 `json:"mean_error"`
	MAE             float64 `json:"mae"`
	StdDev          float64 `json:"std_dev"`
	CreatedAt       string  `json:"created_at"`
	Age             string  `json:"age"`
}

// StoredAnomalyDTO is an anomaly row of a stored run
type StoredAnomalyDTO struct {
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Failure    string `json:"failure"`
	EventIndex int    `json:"event_index"`
	KeyID      int    `json:"key_id"`
	KeyOn      int64  `json:"key_on"`
	KeyOff     int64  `json:"key_off"`
	Reason     string `json:"reason"`
}

// RunDetailResponse is the response for GET /api/runs/{id}
type RunDetailResponse struct {
	Run       RunDTO             `json:"run"`
	Anomalies []StoredAnomalyDTO `json:"anomalies"`
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// DeleteRunResponse is the response for DELETE /api/runs/{id}
type DeleteRunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	RunCount     int    `json:"run_count"`
	Analyses     uint64 `json:"analyses"`
	Started      string `json:"started"`
	Uptime       string `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
