package hammercheck

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/HammerCheck/internal/align"
	"github.com/himanishpuri/HammerCheck/internal/anomaly"
	"github.com/himanishpuri/HammerCheck/internal/metrics"
	"github.com/himanishpuri/HammerCheck/internal/prefilter"
	"github.com/himanishpuri/HammerCheck/pkg/logger"
	"github.com/himanishpuri/HammerCheck/pkg/models"
	"github.com/himanishpuri/HammerCheck/pkg/utils"
)

// analysisService is the default implementation of the Service interface.
// The aligner, classifier and filter hold no per-run state, so one service
// serves concurrent Analyze calls.
type analysisService struct {
	storage    Storage
	log        Logger
	config     *Config
	filter     *prefilter.Filter
	aligner    *align.Aligner
	classifier *anomaly.Classifier
	settings   []int64
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("hammercheck")
	}

	var stor Storage
	if cfg.History {
		if cfg.Storage != nil {
			stor = cfg.Storage
		} else {
			var err error
			stor, err = NewSQLiteStorage(cfg.DBPath)
			if err != nil {
				return nil, fmt.Errorf("failed to create storage: %w", err)
			}
		}
	}

	aligner := align.New(cfg.Window, cfg.Logger)
	return &analysisService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
		filter: prefilter.New(prefilter.Config{
			MinDuration:     cfg.Prefilter.MinDuration,
			MinPeakPressure: cfg.Prefilter.MinPeakPressure,
			Checker:         cfg.Checker,
		}, cfg.Logger),
		aligner:    aligner,
		classifier: anomaly.New(aligner, cfg.Logger),
		settings:   settingsDigest(aligner.Window(), cfg),
	}, nil
}

// Analyze filters both tracks, aligns them, classifies the leftovers and,
// with history enabled, stores the run. Re-analyzing identical tracks returns
// the stored run's ID with Existing set.
func (s *analysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Record) == 0 && len(req.Replay) == 0 {
		return nil, ErrEmptyRequest
	}

	digest := utils.TrackDigest(req.Record, req.Replay, s.digestParams(req.ExceedsTolerance)...)
	name := req.Name
	if name == "" {
		name = "run-" + digest[:8]
	}
	s.log.Infof("Analyzing %s: %d record / %d replay events", name, len(req.Record), len(req.Replay))

	rec, rep := s.filter.Tracks(req.Record, req.Replay)
	if rec.Stats.Invalid > 0 || rep.Stats.Invalid > 0 {
		s.log.Infof("Prefilter removed %d record and %d replay events", rec.Stats.Invalid, rep.Stats.Invalid)
	}

	exceeds, err := filteredPairs(req.ExceedsTolerance, req.Record, req.Replay, rec, rep)
	if err != nil {
		return nil, err
	}

	pairs, reasons, err := s.aligner.Match(rec.Events, rep.Events)
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	res, err := s.classifier.Classify(rec.Events, rep.Events, pairs, reasons, exceeds)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	pairs = remapPairs(pairs, rec.Indices, rep.Indices)
	remapAnomalies(res.Dropped, rec.Indices)
	remapAnomalies(res.Duplicated, rep.Indices)

	report := &Report{
		Name:        name,
		Digest:      digest,
		Pairs:       pairs,
		Dropped:     res.Dropped,
		Duplicated:  res.Duplicated,
		Delay:       metrics.ComputeDelay(pairs),
		Offsets:     metrics.Offsets(pairs),
		RecordStats: rec.Stats,
		ReplayStats: rep.Stats,
		Summary: metrics.Summarize(len(rec.Events), len(rep.Events), len(pairs),
			len(res.Dropped), len(res.Duplicated), len(exceeds)),
	}
	s.log.Infof("Matched %d/%d record events, %d dropped, %d duplicated",
		report.Summary.MatchedCount, report.Summary.RecordCount,
		report.Summary.DroppedCount, report.Summary.DuplicatedCount)

	if s.storage == nil {
		report.RunID = utils.GenerateRunID()
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.persist(report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *analysisService) persist(report *Report) error {
	runID, created, err := s.storage.RegisterRun(models.RunSummary{
		Name:            report.Name,
		Digest:          report.Digest,
		RecordCount:     report.Summary.RecordCount,
		ReplayCount:     report.Summary.ReplayCount,
		MatchedCount:    report.Summary.MatchedCount,
		DroppedCount:    report.Summary.DroppedCount,
		DuplicatedCount: report.Summary.DuplicatedCount,
		SuccessRate:     report.Summary.SuccessRate,
		MeanError:       report.Delay.Mean,
		MAE:             report.Delay.MAE,
		StdDev:          report.Delay.StdDev,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	report.RunID = runID

	rows := make([]models.StoredAnomaly, 0, report.Summary.AnomalyCount())
	for _, list := range [][]models.AnomalyRecord{report.Dropped, report.Duplicated} {
		for _, a := range list {
			rows = append(rows, models.StoredAnomaly{
				RunID:      runID,
				Kind:       a.Kind,
				Status:     a.Status,
				Failure:    a.Failure,
				EventIndex: a.Index,
				KeyID:      a.Event.KeyID,
				KeyOn:      a.Event.KeyOn(),
				KeyOff:     a.Event.KeyOff(),
				Reason:     a.Reason,
			})
		}
	}

	if !created {
		report.Existing = true
		s.log.Infof("Tracks already analyzed as run %s", runID)
		return s.repairAnomalies(runID, rows)
	}

	if err := s.storage.StoreAnomalies(runID, rows); err != nil {
		if delErr := s.storage.DeleteRunByID(runID); delErr != nil {
			s.log.Warnf("Rollback of run %s failed: %v", runID, delErr)
		}
		return fmt.Errorf("failed to store anomalies: %w", err)
	}

	s.log.Infof("Stored run %s with %d anomalies", runID, len(rows))
	return nil
}

// fingerprinter is implemented by audibility checkers that can identify
// their configuration.
type fingerprinter interface {
	Fingerprint() uint64
}

// settingsDigest lists the service settings that change a run's outcome.
func settingsDigest(w Window, cfg *Config) []int64 {
	checker := int64(0)
	switch c := cfg.Checker.(type) {
	case nil:
	case fingerprinter:
		checker = int64(c.Fingerprint())
	default:
		// unknown checkers cannot be told apart
		checker = -1
	}
	return []int64{
		w.Base, w.MinPercent, w.MaxPercent,
		cfg.Prefilter.MinDuration, int64(cfg.Prefilter.MinPeakPressure),
		checker,
	}
}

// digestParams appends the exceeds-tolerance pairs, in request order, to the
// service settings.
func (s *analysisService) digestParams(exceeds []IndexPair) []int64 {
	params := make([]int64, 0, len(s.settings)+1+2*len(exceeds))
	params = append(params, s.settings...)
	params = append(params, int64(len(exceeds)))
	for _, p := range exceeds {
		params = append(params, int64(p.Record), int64(p.Replay))
	}
	return params
}

// repairAnomalies completes an existing run whose anomalies were never
// written, which happens when a store failure was followed by a failed
// rollback.
func (s *analysisService) repairAnomalies(runID string, rows []models.StoredAnomaly) error {
	stored, err := s.storage.CountAnomalies(runID)
	if err != nil {
		return fmt.Errorf("failed to count anomalies: %w", err)
	}
	switch {
	case stored == len(rows):
		return nil
	case stored == 0:
		s.log.Warnf("Run %s has no stored anomalies, storing %d", runID, len(rows))
		if err := s.storage.StoreAnomalies(runID, rows); err != nil {
			return fmt.Errorf("failed to store anomalies: %w", err)
		}
		return nil
	default:
		s.log.Warnf("Run %s holds %d anomalies, analysis found %d", runID, stored, len(rows))
		return nil
	}
}

// filteredPairs translates exceeds-tolerance pairs from input positions to
// positions in the filtered tracks.
func filteredPairs(in []IndexPair, record, replay []models.Event, rec, rep prefilter.Track) ([]models.MatchedPair, error) {
	if len(in) == 0 {
		return nil, nil
	}
	recPos := inverse(rec.Indices)
	repPos := inverse(rep.Indices)

	out := make([]models.MatchedPair, 0, len(in))
	for n, p := range in {
		if p.Record < 0 || p.Record >= len(record) || p.Replay < 0 || p.Replay >= len(replay) {
			return nil, fmt.Errorf("exceeds[%d] (%d,%d): %w", n, p.Record, p.Replay, anomaly.ErrIndexOutOfRange)
		}
		i, okRec := recPos[p.Record]
		j, okRep := repPos[p.Replay]
		if !okRec || !okRep {
			return nil, fmt.Errorf("exceeds[%d] (%d,%d): %w", n, p.Record, p.Replay, ErrFilteredEvent)
		}
		out = append(out, models.NewMatchedPair(i, j, rec.Events[i], rep.Events[j]))
	}
	return out, nil
}

func inverse(indices []int) map[int]int {
	m := make(map[int]int, len(indices))
	for pos, orig := range indices {
		m[orig] = pos
	}
	return m
}

func remapPairs(pairs []models.MatchedPair, recIdx, repIdx []int) []models.MatchedPair {
	for i := range pairs {
		pairs[i].RecordIndex = recIdx[pairs[i].RecordIndex]
		pairs[i].ReplayIndex = repIdx[pairs[i].ReplayIndex]
	}
	return pairs
}

func remapAnomalies(list []models.AnomalyRecord, idx []int) {
	for i := range list {
		list[i].Index = idx[list[i].Index]
	}
}

func (s *analysisService) GetRun(runID string) (*models.RunSummary, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage.GetRun(runID)
}

func (s *analysisService) ListRuns(limit int) ([]models.RunSummary, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage.ListRuns(limit)
}

func (s *analysisService) RunAnomalies(runID string) ([]models.StoredAnomaly, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := s.storage.GetRun(runID); err != nil {
		return nil, err
	}
	return s.storage.GetAnomalies(runID)
}

// DeleteRun removes a run and its anomalies.
func (s *analysisService) DeleteRun(runID string) error {
	if s.storage == nil {
		return ErrHistoryDisabled
	}
	return s.storage.DeleteRunByID(runID)
}

// Close releases all resources held by the service.
func (s *analysisService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
