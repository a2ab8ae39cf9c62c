package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/HammerCheck/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "hammercheck.sqlite3"
const errDBClientNil = "db client is nil"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Run is the stored header of one analysis.
type Run struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	Name            string `gorm:"index:idx_run_name" json:"name"`
	Digest          string `gorm:"uniqueIndex:idx_run_digest;type:varchar(64)" json:"digest"`
	RecordCount     int    `json:"record_count"`
	ReplayCount     int    `json:"replay_count"`
	MatchedCount    int    `json:"matched_count"`
	DroppedCount    int    `json:"dropped_count"`
	DuplicatedCount int    `json:"duplicated_count"`
	SuccessRate     float64
	MeanError       float64
	MAE             float64
	StdDev          float64
	CreatedAt       time.Time `gorm:"index:idx_run_created"`
}

// Anomaly is one dropped or duplicated event of a run.
type Anomaly struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"type:varchar(36);index:idx_anomaly_run" json:"run_id"`
	Kind       string `gorm:"index:idx_anomaly_kind" json:"kind"`
	Status     string `json:"status"`
	Failure    string `json:"failure"`
	EventIndex int    `json:"event_index"`
	KeyID      int    `gorm:"index:idx_anomaly_key" json:"key_id"`
	KeyOn      int64  `json:"key_on"`
	KeyOff     int64  `json:"key_off"`
	Reason     string `json:"reason"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("HAMMERCHECK_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.EnsureParentDir(dbPath); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &Anomaly{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterRun stores run unless a run with the same digest exists. It returns
// the ID of the stored run and whether it was created by this call. An empty
// run.ID gets a fresh UUID.
func (c *DBClient) RegisterRun(run Run) (string, bool, error) {
	if c == nil || c.DB == nil {
		return "", false, errors.New(errDBClientNil)
	}

	var existing Run
	err := c.DB.Where("digest = ?", run.Digest).First(&existing).Error
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("querying existing run: %w", err)
	}

	if run.ID == "" {
		run.ID = utils.GenerateRunID()
	}
	if err := c.DB.Create(&run).Error; err != nil {
		if isConstraintErr(err) {
			if fetchErr := c.DB.Where("digest = ?", run.Digest).First(&existing).Error; fetchErr != nil {
				return "", false, fmt.Errorf("fetching run after constraint violation: %w", fetchErr)
			}
			return existing.ID, false, nil
		}
		return "", false, fmt.Errorf("creating run: %w", err)
	}
	return run.ID, true, nil
}

func isConstraintErr(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// StoreAnomalies writes rows for runID in batches.
func (c *DBClient) StoreAnomalies(runID string, rows []Anomaly) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].RunID = runID
	}
	if err := c.DB.CreateInBatches(rows, 500).Error; err != nil {
		return fmt.Errorf("batch insert anomalies: %w", err)
	}
	return nil
}

func (c *DBClient) GetRun(runID string) (*Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var run Run
	if err := c.DB.Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first. limit <= 0 returns every run.
func (c *DBClient) ListRuns(limit int) ([]Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetAnomalies returns the anomalies of runID in insertion order.
func (c *DBClient) GetAnomalies(runID string) ([]Anomaly, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Anomaly
	if err := c.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying anomalies: %w", err)
	}
	return rows, nil
}

func (c *DBClient) CountAnomalies(runID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Anomaly{}).Where("run_id = ?", runID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting anomalies: %w", err)
	}
	return int(count), nil
}

// DeleteRunByID removes a run and its anomalies in one transaction.
func (c *DBClient) DeleteRunByID(runID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&Anomaly{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", runID).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}
