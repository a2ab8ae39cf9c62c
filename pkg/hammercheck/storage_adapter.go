package hammercheck

import (
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck/storage"
	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend. An empty dbPath
// falls back to HAMMERCHECK_DB_PATH, then storage.DefaultDBFile.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	var (
		db  *storage.DBClient
		err error
	)
	if dbPath == "" {
		db, err = storage.NewDBClient()
	} else {
		db, err = storage.NewDBClientWithPath(dbPath)
	}
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) RegisterRun(run models.RunSummary) (string, bool, error) {
	return s.db.RegisterRun(storage.Run{
		ID:              run.ID,
		Name:            run.Name,
		Digest:          run.Digest,
		RecordCount:     run.RecordCount,
		ReplayCount:     run.ReplayCount,
		MatchedCount:    run.MatchedCount,
		DroppedCount:    run.DroppedCount,
		DuplicatedCount: run.DuplicatedCount,
		SuccessRate:     run.SuccessRate,
		MeanError:       run.MeanError,
		MAE:             run.MAE,
		StdDev:          run.StdDev,
		CreatedAt:       run.CreatedAt,
	})
}

func (s *storageAdapter) StoreAnomalies(runID string, anomalies []models.StoredAnomaly) error {
	rows := make([]storage.Anomaly, len(anomalies))
	for i, a := range anomalies {
		rows[i] = storage.Anomaly{
			Kind:       string(a.Kind),
			Status:     string(a.Status),
			Failure:    string(a.Failure),
			EventIndex: a.EventIndex,
			KeyID:      a.KeyID,
			KeyOn:      a.KeyOn,
			KeyOff:     a.KeyOff,
			Reason:     a.Reason,
		}
	}
	return s.db.StoreAnomalies(runID, rows)
}

func (s *storageAdapter) GetRun(runID string) (*models.RunSummary, error) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	summary := toSummary(*run)
	return &summary, nil
}

func (s *storageAdapter) ListRuns(limit int) ([]models.RunSummary, error) {
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.RunSummary, len(runs))
	for i, r := range runs {
		out[i] = toSummary(r)
	}
	return out, nil
}

func (s *storageAdapter) GetAnomalies(runID string) ([]models.StoredAnomaly, error) {
	rows, err := s.db.GetAnomalies(runID)
	if err != nil {
		return nil, err
	}
	out := make([]models.StoredAnomaly, len(rows))
	for i, r := range rows {
		out[i] = models.StoredAnomaly{
			RunID:      r.RunID,
			Kind:       models.AnomalyKind(r.Kind),
			Status:     models.AnomalyStatus(r.Status),
			Failure:    models.FailureKind(r.Failure),
			EventIndex: r.EventIndex,
			KeyID:      r.KeyID,
			KeyOn:      r.KeyOn,
			KeyOff:     r.KeyOff,
			Reason:     r.Reason,
		}
	}
	return out, nil
}

func (s *storageAdapter) CountAnomalies(runID string) (int, error) {
	return s.db.CountAnomalies(runID)
}

func (s *storageAdapter) DeleteRunByID(runID string) error {
	return s.db.DeleteRunByID(runID)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toSummary(r storage.Run) models.RunSummary {
	return models.RunSummary{
		ID:              r.ID,
		Name:            r.Name,
		Digest:          r.Digest,
		RecordCount:     r.RecordCount,
		ReplayCount:     r.ReplayCount,
		MatchedCount:    r.MatchedCount,
		DroppedCount:    r.DroppedCount,
		DuplicatedCount: r.DuplicatedCount,
		SuccessRate:     r.SuccessRate,
		MeanError:       r.MeanError,
		MAE:             r.MAE,
		StdDev:          r.StdDev,
		CreatedAt:       r.CreatedAt,
	}
}
