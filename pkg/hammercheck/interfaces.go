package hammercheck

import (
	"context"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

type Service interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error)
	GetRun(runID string) (*models.RunSummary, error)
	ListRuns(limit int) ([]models.RunSummary, error)
	RunAnomalies(runID string) ([]models.StoredAnomaly, error)
	DeleteRun(runID string) error
	Close() error
}

type Storage interface {
	RegisterRun(run models.RunSummary) (string, bool, error)
	StoreAnomalies(runID string, anomalies []models.StoredAnomaly) error
	GetRun(runID string) (*models.RunSummary, error)
	ListRuns(limit int) ([]models.RunSummary, error)
	GetAnomalies(runID string) ([]models.StoredAnomaly, error)
	CountAnomalies(runID string) (int, error)
	DeleteRunByID(runID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
