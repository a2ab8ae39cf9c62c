package align

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// held builds an event whose pressure curve spans [on, off].
func held(key int, on, off int64) models.Event {
	return models.NewEvent(key, 0,
		[]models.Strike{{Time: on, Velocity: 80}},
		[]models.PressureSample{{Time: on, Value: 600}, {Time: off, Value: 0}},
	)
}

func TestWindowTolerance(t *testing.T) {
	w := DefaultWindow()
	tests := []struct {
		duration  int64
		factor    float64
		tolerance int64
	}{
		{100, 0.6, 300},
		{299, 0.6, 300},
		{300, 0.6, 300},
		{400, 0.8, 400},
		{500, 1.0, 500},
		{2000, 1.0, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tolerance, w.Tolerance(tt.duration), "tolerance for duration %d", tt.duration)
		assert.InDelta(t, tt.factor, w.Factor(tt.duration), 1e-9, "factor for duration %d", tt.duration)
	}
}

func TestNewFallsBackToDefaultWindow(t *testing.T) {
	a := New(Window{Base: 0}, nil)
	assert.Equal(t, DefaultWindow(), a.Window())
}

func TestMatchSingleClosePair(t *testing.T) {
	record := []models.Event{held(60, 1000, 1300)}
	replay := []models.Event{held(60, 1010, 1290)}

	pairs, reasons, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Empty(t, reasons)

	p := pairs[0]
	assert.Equal(t, 0, p.RecordIndex)
	assert.Equal(t, 0, p.ReplayIndex)
	assert.Equal(t, int64(10), p.TimeError)
}

func TestMatchNoEventsForKey(t *testing.T) {
	record := []models.Event{held(62, 1000, 1400)}
	replay := []models.Event{held(60, 1000, 1400)}

	pairs, reasons, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	f, ok := reasons.Lookup(models.SideRecord, 0)
	require.True(t, ok)
	assert.Equal(t, models.NoCandidateKey, f.Kind)
	assert.Equal(t, "no events for key_id=62", f.Reason)
}

func TestMatchInvalidDuration(t *testing.T) {
	// A single pressure sample gives key-on == key-off.
	bad := models.NewEvent(61, 1000, nil, []models.PressureSample{{Time: 0, Value: 700}})
	record := []models.Event{bad}
	replay := []models.Event{held(61, 1000, 1300)}

	pairs, reasons, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	f, ok := reasons.Lookup(models.SideRecord, 0)
	require.True(t, ok)
	assert.Equal(t, models.InvalidDuration, f.Kind)
	assert.Equal(t, "invalid duration (≤0), suspected abnormal event", f.Reason)
	assert.Zero(t, f.Tolerance)
}

func TestMatchToleranceBoundaryIsInclusive(t *testing.T) {
	// duration 400 -> tolerance 400
	record := []models.Event{held(40, 1000, 1400)}

	t.Run("at tolerance", func(t *testing.T) {
		pairs, reasons, err := New(DefaultWindow(), nil).Match(record, []models.Event{held(40, 1400, 1700)})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, int64(400), pairs[0].TimeError)
		assert.Empty(t, reasons)
	})

	t.Run("one past tolerance", func(t *testing.T) {
		pairs, reasons, err := New(DefaultWindow(), nil).Match(record, []models.Event{held(40, 1401, 1700)})
		require.NoError(t, err)
		assert.Empty(t, pairs)

		f, ok := reasons.Lookup(models.SideRecord, 0)
		require.True(t, ok)
		assert.Equal(t, models.ToleranceExceeded, f.Kind)
		assert.Equal(t, "time error too large (best=401, tolerance=400)", f.Reason)
		assert.Equal(t, int64(401), f.BestError)
		assert.Equal(t, int64(400), f.Tolerance)
	})
}

func TestMatchPicksClosestCandidate(t *testing.T) {
	record := []models.Event{held(50, 1000, 1600)}
	replay := []models.Event{
		held(50, 1200, 1700),
		held(51, 1001, 1600),
		held(50, 990, 1600),
		held(50, 1050, 1600),
	}

	pairs, _, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 2, pairs[0].ReplayIndex)
}

func TestSearchStableOnTies(t *testing.T) {
	target := held(50, 1000, 1600)
	opposite := []models.Event{
		held(50, 1020, 1600),
		held(50, 980, 1600),
		held(50, 1020, 1500),
	}

	res := New(DefaultWindow(), nil).Search(target, opposite)
	require.Nil(t, res.Failure)
	require.Len(t, res.Survivors, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{res.Survivors[0].Index, res.Survivors[1].Index, res.Survivors[2].Index})
	assert.Equal(t, 3, res.SameKey)
	assert.Equal(t, int64(20), res.BestError)
}

func TestMatchGreedyOrderDependence(t *testing.T) {
	// One replay candidate at 1200 sits within tolerance of both record
	// events. Record 1 is closer (error 50) than record 0 (error 200), but
	// record 0 is visited first and keeps it.
	record := []models.Event{
		held(63, 1000, 1600),
		held(63, 1250, 1850),
	}
	replay := []models.Event{held(63, 1200, 1800)}

	pairs, reasons, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 0, pairs[0].RecordIndex)
	assert.Equal(t, int64(200), pairs[0].TimeError)

	f, ok := reasons.Lookup(models.SideRecord, 1)
	require.True(t, ok)
	assert.Equal(t, models.AllCandidatesOccupied, f.Kind)
	assert.Equal(t, "all 1 in-tolerance candidates already occupied (tolerance=500)", f.Reason)
	assert.Equal(t, int64(50), f.BestError)
}

func TestMatchFallsBackToNextFreeCandidate(t *testing.T) {
	record := []models.Event{
		held(70, 1000, 1500),
		held(70, 1010, 1500),
	}
	replay := []models.Event{
		held(70, 1005, 1500),
		held(70, 1100, 1500),
	}

	pairs, reasons, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)
	assert.Empty(t, reasons)
	require.Len(t, pairs, 2)
	assert.Equal(t, 0, pairs[0].ReplayIndex)
	assert.Equal(t, 1, pairs[1].ReplayIndex)
}

func TestMatchNeverReusesReplayIndex(t *testing.T) {
	var record, replay []models.Event
	for i := int64(0); i < 20; i++ {
		record = append(record, held(int(i%3), 1000+i*100, 1400+i*100))
		replay = append(replay, held(int(i%3), 1020+i*100, 1400+i*100))
	}

	pairs, _, err := New(DefaultWindow(), nil).Match(record, replay)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, p := range pairs {
		assert.False(t, seen[p.ReplayIndex], "replay index %d reused", p.ReplayIndex)
		seen[p.ReplayIndex] = true
		assert.Equal(t, p.Record.KeyID, p.Replay.KeyID)
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	record := []models.Event{
		held(10, 0, 400), held(10, 300, 700), held(11, 50, 90), held(12, 0, 1),
		held(10, 900, 1300), held(13, 100, 600),
	}
	replay := []models.Event{
		held(10, 20, 400), held(11, 60, 100), held(10, 310, 700), held(10, 1500, 1800),
		held(13, 900, 1200),
	}

	a := New(DefaultWindow(), nil)
	firstPairs, firstReasons, err := a.Match(record, replay)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		pairs, reasons, err := a.Match(record, replay)
		require.NoError(t, err)
		assert.Equal(t, firstPairs, pairs)
		assert.Equal(t, firstReasons, reasons)
	}
}

func TestMatchRejectsUnanalyzableEvents(t *testing.T) {
	empty := models.NewEvent(5, 100, []models.Strike{{Time: 0, Velocity: 0}}, nil)

	_, _, err := New(DefaultWindow(), nil).Match([]models.Event{held(5, 0, 400)}, []models.Event{empty})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnanalyzableEvent))
	assert.Contains(t, err.Error(), "replay[0]")
}

func TestMatchEmptyTracks(t *testing.T) {
	pairs, reasons, err := New(DefaultWindow(), nil).Match(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.Empty(t, reasons)
}
