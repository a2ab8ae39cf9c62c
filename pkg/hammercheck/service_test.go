package hammercheck

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HammerCheck/internal/anomaly"
	"github.com/himanishpuri/HammerCheck/pkg/hammercheck/storage"
	"github.com/himanishpuri/HammerCheck/pkg/logger"
	"github.com/himanishpuri/HammerCheck/pkg/models"
)

func held(key int, on, off int64) models.Event {
	return models.NewEvent(key, 0,
		[]models.Strike{{Time: on, Velocity: 80}},
		[]models.PressureSample{{Time: on, Value: 700}, {Time: off, Value: 5}},
	)
}

func quietLogger() Logger {
	var buf bytes.Buffer
	return logger.New(logger.Config{Level: logger.ERROR, Output: &buf})
}

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	base := []Option{
		WithDBPath(filepath.Join(t.TempDir(), "svc.sqlite3")),
		WithLogger(quietLogger()),
	}
	svc, err := NewService(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

// record: 60 ok, 61 empty (filtered), 62 missing on replay
// replay: 60 ok, 63 extra
func mixedRequest() AnalyzeRequest {
	return AnalyzeRequest{
		Name: "mixed",
		Record: []models.Event{
			held(60, 1000, 1300),
			models.NewEvent(61, 1500, nil, nil),
			held(62, 2000, 2400),
		},
		Replay: []models.Event{
			held(60, 1010, 1290),
			held(63, 3000, 3400),
		},
	}
}

func TestAnalyzeReportsInputIndices(t *testing.T) {
	svc := newTestService(t, WithoutHistory())

	report, err := svc.Analyze(context.Background(), mixedRequest())
	require.NoError(t, err)

	require.Len(t, report.Pairs, 1)
	assert.Equal(t, 0, report.Pairs[0].RecordIndex)
	assert.Equal(t, 0, report.Pairs[0].ReplayIndex)

	require.Len(t, report.Dropped, 1)
	assert.Equal(t, 2, report.Dropped[0].Index, "index refers to the unfiltered record track")
	assert.Equal(t, "no events for key_id=62", report.Dropped[0].Reason)

	require.Len(t, report.Duplicated, 1)
	assert.Equal(t, 1, report.Duplicated[0].Index)
	assert.Equal(t, "no events for key_id=63", report.Duplicated[0].Reason)

	assert.Equal(t, 1, report.RecordStats.Invalid)
	assert.Equal(t, 2, report.Summary.RecordCount)
	assert.InDelta(t, 0.5, report.Summary.SuccessRate, 1e-9)
	assert.Equal(t, 1, report.Delay.Count)
	assert.InDelta(t, 10, report.Delay.Mean, 1e-9)
	require.Len(t, report.Offsets, 1)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.Existing)
}

func TestAnalyzeWithPrefilter(t *testing.T) {
	svc := newTestService(t, WithoutHistory(), WithPrefilter(PrefilterConfig{MinDuration: 350}))

	report, err := svc.Analyze(context.Background(), mixedRequest())
	require.NoError(t, err)

	// the 300-long key 60 record event is now too short
	assert.Equal(t, 2, report.RecordStats.Invalid)
	assert.Empty(t, report.Pairs)
}

// record 0 is filtered, record 1 and replay 0 are 700 apart
func exceedsRequest(pairs ...IndexPair) AnalyzeRequest {
	return AnalyzeRequest{
		Record:           []models.Event{models.NewEvent(9, 0, nil, nil), held(40, 1000, 1100)},
		Replay:           []models.Event{held(40, 1700, 1900)},
		ExceedsTolerance: pairs,
	}
}

func TestAnalyzeExceedsTolerance(t *testing.T) {
	svc := newTestService(t, WithoutHistory())

	req := exceedsRequest(IndexPair{Record: 1, Replay: 0})
	report, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, report.Dropped, 1)
	require.Len(t, report.Duplicated, 1)
	assert.Equal(t, 1, report.Dropped[0].Index)
	assert.Equal(t, models.StatusExceedsTolerance, report.Dropped[0].Status)
	assert.Equal(t, "time error too large (best=700, tolerance=300)", report.Duplicated[0].Reason)
	assert.Equal(t, 1, report.Summary.ExceedsCount)
}

func TestAnalyzeRequestErrors(t *testing.T) {
	svc := newTestService(t, WithoutHistory())
	ctx := context.Background()

	_, err := svc.Analyze(ctx, AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrEmptyRequest)

	req := mixedRequest()
	req.ExceedsTolerance = []IndexPair{{Record: 1, Replay: 1}}
	_, err = svc.Analyze(ctx, req)
	assert.ErrorIs(t, err, ErrFilteredEvent)

	req.ExceedsTolerance = []IndexPair{{Record: 7, Replay: 0}}
	_, err = svc.Analyze(ctx, req)
	assert.ErrorIs(t, err, anomaly.ErrIndexOutOfRange)

	// record 0 and replay 0 are already paired by the aligner
	req.ExceedsTolerance = []IndexPair{{Record: 0, Replay: 0}}
	_, err = svc.Analyze(ctx, req)
	assert.ErrorIs(t, err, anomaly.ErrIndexReused)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Analyze(canceled, mixedRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistoryLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, mixedRequest())
	require.NoError(t, err)
	assert.False(t, first.Existing)

	second, err := svc.Analyze(ctx, mixedRequest())
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.RunID, second.RunID)

	runs, err := svc.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "mixed", runs[0].Name)
	assert.Equal(t, 1, runs[0].MatchedCount)

	anomalies, err := svc.RunAnomalies(first.RunID)
	require.NoError(t, err)
	require.Len(t, anomalies, 2)
	assert.Equal(t, models.Dropped, anomalies[0].Kind)
	assert.Equal(t, 62, anomalies[0].KeyID)
	assert.Equal(t, models.Duplicated, anomalies[1].Kind)
	assert.Equal(t, int64(3000), anomalies[1].KeyOn)

	require.NoError(t, svc.DeleteRun(first.RunID))
	_, err = svc.GetRun(first.RunID)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
	_, err = svc.RunAnomalies(first.RunID)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestExceedsPairsStartANewRun(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plain, err := svc.Analyze(ctx, exceedsRequest())
	require.NoError(t, err)
	flagged, err := svc.Analyze(ctx, exceedsRequest(IndexPair{Record: 1, Replay: 0}))
	require.NoError(t, err)

	assert.False(t, flagged.Existing)
	assert.NotEqual(t, plain.RunID, flagged.RunID)
	assert.NotEqual(t, plain.Digest, flagged.Digest)

	stored, err := svc.RunAnomalies(flagged.RunID)
	require.NoError(t, err)
	require.Len(t, stored, len(flagged.Dropped)+len(flagged.Duplicated))
	assert.Equal(t, models.StatusExceedsTolerance, stored[0].Status)

	stored, err = svc.RunAnomalies(plain.RunID)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, models.StatusUnmatched, stored[0].Status)

	again, err := svc.Analyze(ctx, exceedsRequest(IndexPair{Record: 1, Replay: 0}))
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, flagged.RunID, again.RunID)
}

func TestSettingsStartANewRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.sqlite3")
	ctx := context.Background()

	analyze := func(opts ...Option) *Report {
		t.Helper()
		base := []Option{WithDBPath(dbPath), WithLogger(quietLogger())}
		svc, err := NewService(append(base, opts...)...)
		require.NoError(t, err)
		defer svc.Close()

		report, err := svc.Analyze(ctx, mixedRequest())
		require.NoError(t, err)
		return report
	}

	first := analyze()
	strict := analyze(WithPrefilter(PrefilterConfig{MinDuration: 350}))
	narrow := analyze(WithWindow(Window{Base: 400, MinPercent: 50, MaxPercent: 100}))
	same := analyze()

	assert.False(t, strict.Existing)
	assert.NotEqual(t, first.RunID, strict.RunID)
	assert.False(t, narrow.Existing)
	assert.NotEqual(t, first.RunID, narrow.RunID)
	assert.True(t, same.Existing)
	assert.Equal(t, first.RunID, same.RunID)
}

func TestNewServiceReadsDBPathFromEnv(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env", "history.sqlite3")
	t.Setenv("HAMMERCHECK_DB_PATH", dbPath)

	svc, err := NewService(WithLogger(quietLogger()))
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Analyze(context.Background(), mixedRequest())
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	svc := newTestService(t, WithoutHistory())

	_, err := svc.ListRuns(0)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.GetRun("x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.ErrorIs(t, svc.DeleteRun("x"), ErrHistoryDisabled)
	assert.NoError(t, svc.Close())
}

type failingStorage struct {
	Storage
	deleted []string
}

func (f *failingStorage) RegisterRun(models.RunSummary) (string, bool, error) {
	return "run-1", true, nil
}

func (f *failingStorage) StoreAnomalies(string, []models.StoredAnomaly) error {
	return errors.New("disk full")
}

func (f *failingStorage) DeleteRunByID(id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *failingStorage) Close() error { return nil }

func TestAnalyzeRollsBackOnStoreFailure(t *testing.T) {
	stor := &failingStorage{}
	svc := newTestService(t, WithStorage(stor))

	_, err := svc.Analyze(context.Background(), mixedRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []string{"run-1"}, stor.deleted)
}

type halfWrittenStorage struct {
	Storage
	stored [][]models.StoredAnomaly
}

func (h *halfWrittenStorage) RegisterRun(models.RunSummary) (string, bool, error) {
	return "run-2", false, nil
}

func (h *halfWrittenStorage) CountAnomalies(string) (int, error) {
	if len(h.stored) > 0 {
		return len(h.stored[0]), nil
	}
	return 0, nil
}

func (h *halfWrittenStorage) StoreAnomalies(_ string, rows []models.StoredAnomaly) error {
	h.stored = append(h.stored, rows)
	return nil
}

func (h *halfWrittenStorage) Close() error { return nil }

func TestExistingRunWithoutAnomaliesIsCompleted(t *testing.T) {
	stor := &halfWrittenStorage{}
	svc := newTestService(t, WithStorage(stor))

	report, err := svc.Analyze(context.Background(), mixedRequest())
	require.NoError(t, err)
	assert.True(t, report.Existing)
	require.Len(t, stor.stored, 1)
	assert.Len(t, stor.stored[0], 2)

	_, err = svc.Analyze(context.Background(), mixedRequest())
	require.NoError(t, err)
	assert.Len(t, stor.stored, 1, "complete runs are left alone")
}
